package batched

import (
	"fmt"

	"github.com/samcharles93/batchlu/internal/gpu"
)

type role int

const (
	// roleMatrix carries the A upload, the A pointer array, compute and the
	// status download.
	roleMatrix role = iota
	// roleRHS carries the B upload, the B pointer array and the solution
	// download.
	roleRHS
	// rolePivot carries the pivot pointer array.
	rolePivot
	numRoles
)

func (r role) String() string {
	switch r {
	case roleMatrix:
		return "matrix"
	case roleRHS:
		return "rhs"
	case rolePivot:
		return "pivot"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// streamSet maps the three roles of a call onto device streams. In serial
// mode every role shares one stream.
type streamSet struct {
	byRole    [numRoles]gpu.Stream
	owned     []gpu.Stream
	destroyed bool
}

func newStreamSet(dev gpu.Device, serial bool) (*streamSet, error) {
	set := &streamSet{}
	n := int(numRoles)
	if serial {
		n = 1
	}
	for range n {
		s, err := dev.NewStream()
		if err != nil {
			_ = set.destroy()
			return nil, fmt.Errorf("create stream: %w", err)
		}
		set.owned = append(set.owned, s)
	}
	for r := range set.byRole {
		set.byRole[r] = set.owned[r%len(set.owned)]
	}
	return set, nil
}

func (s *streamSet) get(r role) gpu.Stream {
	return s.byRole[r]
}

// barrier waits for every stream.
func (s *streamSet) barrier() error {
	var err error
	for i, st := range s.owned {
		if e := st.Synchronize(); e != nil && err == nil {
			err = fmt.Errorf("synchronize stream %d: %w", i, e)
		}
	}
	return err
}

func (s *streamSet) sync(r role) error {
	if err := s.byRole[r].Synchronize(); err != nil {
		return fmt.Errorf("synchronize %s stream: %w", r, err)
	}
	return nil
}

// destroy synchronises and destroys every stream once; later calls are
// no-ops.
func (s *streamSet) destroy() error {
	if s == nil || s.destroyed {
		return nil
	}
	s.destroyed = true

	err := s.barrier()
	for _, st := range s.owned {
		if e := st.Destroy(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
