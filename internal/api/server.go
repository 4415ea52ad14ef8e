// Package api serves batched solves over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/batchlu/internal/batched"
	"github.com/samcharles93/batchlu/internal/gpu"
	"github.com/samcharles93/batchlu/internal/logger"
)

// Solver is the part of batched.Solver the server needs.
type Solver interface {
	Solve(ctx context.Context, batch batched.Batch) (*batched.Solution, error)
	Backend() gpu.Backend
}

type Server struct {
	solver Solver
	store  *SolutionStore
	clock  func() time.Time
	log    logger.Logger
}

func NewServer(solver Solver, store *SolutionStore, log logger.Logger) *Server {
	if store == nil {
		store = NewSolutionStore(0)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		solver: solver,
		store:  store,
		clock:  time.Now,
		log:    log,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/solve", s.handleSolve)
	e.GET("/v1/solutions/:id", s.handleGetSolution)
	e.DELETE("/v1/solutions/:id", s.handleDeleteSolution)
	e.GET("/v1/device", s.handleDevice)
	e.GET("/healthz", s.handleHealth)
}

func (s *Server) handleSolve(c *echo.Context) error {
	if s.solver == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "solver not configured", "", "")
	}
	req, err := decodeJSON[SolveRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err)
	}

	batch := req.batch()
	start := s.clock()
	resp := SolveResponse{
		ID:        newSolutionID(),
		Object:    "batch.solution",
		CreatedAt: start.Unix(),
		Backend:   s.solver.Backend().Name(),
		N:         batch.N,
		NRHS:      batch.NRHS,
		Count:     batch.Count,
	}

	sol, err := s.solver.Solve(c.Request().Context(), batch)
	resp.DurationMS = float64(s.clock().Sub(start).Microseconds()) / 1e3
	if sol != nil {
		resp.Info = sol.Info
		resp.X = sol.X
	}

	status := http.StatusOK
	if err != nil {
		resp.Status = batched.Code(err)
		status, resp.Error = classify(err)
		var se *batched.StatusError
		if errors.As(err, &se) && se.Index >= 0 {
			idx := se.Index
			resp.Index = &idx
		}
		s.log.Warn("solve request failed", "id", resp.ID, "status", resp.Status, "err", err)
	} else {
		s.log.Debug("solve request done", "id", resp.ID, "count", resp.Count, "duration_ms", resp.DurationMS)
	}

	if req.Store == nil || *req.Store {
		s.store.Save(resp)
	}
	return c.JSON(status, resp)
}

func (s *Server) handleGetSolution(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return writeNotFound(c, "solution not found")
	}
	resp, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "solution not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteSolution(c *echo.Context) error {
	id := c.Param("id")
	if id == "" || !s.store.Delete(id) {
		return writeNotFound(c, "solution not found")
	}
	return c.JSON(http.StatusOK, DeleteSolutionResp{
		ID:      id,
		Object:  "batch.solution",
		Deleted: true,
	})
}

func (s *Server) handleDevice(c *echo.Context) error {
	if s.solver == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "solver not configured", "", "")
	}
	dev := s.solver.Backend()
	info, err := dev.MemInfo()
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "device_error", err.Error(), "", "")
	}
	return c.JSON(http.StatusOK, DeviceResponse{
		Object:          "device",
		Backend:         dev.Name(),
		TotalBytes:      info.Total,
		FreeBytes:       info.Free,
		UsedBytes:       info.Used,
		Allocations:     info.Allocations,
		HostAllocations: info.HostAllocations,
	})
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
