package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/batchlu/internal/batched"
)

func writeBadRequest(c *echo.Context, err error) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error(), requestParam(err), "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "", "")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return out, newInvalidRequest("", "request body is empty")
		}
		return out, newInvalidRequest("body", "decode request: %v", err)
	}
	return out, nil
}

// batch converts a request into a solver batch, applying defaults. Shape
// errors are left to the solver so they surface as status codes.
func (r SolveRequest) batch() batched.Batch {
	nrhs := 1
	if r.NRHS != nil {
		nrhs = *r.NRHS
	}
	count := len(r.B)
	if r.Count != nil {
		count = *r.Count
	}
	return batched.Batch{N: r.N, NRHS: nrhs, Count: count, A: r.A, B: r.B}
}

// argumentNames maps solver argument positions to request fields.
var argumentNames = map[int]string{1: "n", 2: "nrhs", 3: "a", 5: "b", 9: "count"}

// classify maps a solve error to an HTTP status and an error body.
func classify(err error) (int, *ResponseError) {
	code := batched.Code(err)
	var se *batched.StatusError
	switch {
	case errors.As(err, &se) && code < 0:
		return http.StatusBadRequest, &ResponseError{
			Message: err.Error(),
			Type:    "invalid_request_error",
			Param:   argumentNames[-code],
			Code:    "illegal_argument",
		}
	case errors.Is(err, batched.ErrSingular):
		return http.StatusUnprocessableEntity, &ResponseError{
			Message: err.Error(),
			Type:    "numerical_error",
			Code:    "singular_matrix",
		}
	case code == batched.CodeHostAlloc || code == batched.CodeDeviceAlloc:
		return http.StatusServiceUnavailable, &ResponseError{
			Message: err.Error(),
			Type:    "device_error",
			Code:    "out_of_memory",
		}
	default:
		return http.StatusInternalServerError, &ResponseError{
			Message: err.Error(),
			Type:    "device_error",
		}
	}
}

func newSolutionID() string {
	return "sol_" + uuid.NewString()
}
