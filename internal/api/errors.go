package api

import (
	"errors"
	"fmt"
)

var ErrInvalidRequest = errors.New("invalid_request")

// requestError is a malformed request body; param names the offending
// field when it is known.
type requestError struct {
	param string
	msg   string
}

func (e requestError) Error() string {
	return e.msg
}

func (e requestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(param, format string, args ...any) error {
	return requestError{param: param, msg: fmt.Sprintf(format, args...)}
}

// requestParam returns the field an invalid request error refers to.
func requestParam(err error) string {
	var re requestError
	if errors.As(err, &re) {
		return re.param
	}
	return ""
}
