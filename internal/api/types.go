package api

// SolveRequest is the body of POST /v1/solve. A holds Count column-major
// N×N matrices back to back; B holds one column-major N×NRHS block per
// matrix. NRHS defaults to 1 and Count to len(B).
type SolveRequest struct {
	N     int         `json:"n"`
	NRHS  *int        `json:"nrhs,omitempty"`
	Count *int        `json:"count,omitempty"`
	A     []float32   `json:"a"`
	B     [][]float32 `json:"b"`
	// Store keeps the solution retrievable by id; the default is true.
	Store *bool `json:"store,omitempty"`
}

type SolveResponse struct {
	ID         string         `json:"id"`
	Object     string         `json:"object"`
	CreatedAt  int64          `json:"created_at"`
	Backend    string         `json:"backend"`
	N          int            `json:"n"`
	NRHS       int            `json:"nrhs"`
	Count      int            `json:"count"`
	Status     int            `json:"status"`
	Index      *int           `json:"index,omitempty"`
	Info       []int32        `json:"info,omitempty"`
	X          [][]float32    `json:"x,omitempty"`
	DurationMS float64        `json:"duration_ms"`
	Error      *ResponseError `json:"error,omitempty"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

type DeviceResponse struct {
	Object          string `json:"object"`
	Backend         string `json:"backend"`
	TotalBytes      int64  `json:"total_bytes"`
	FreeBytes       int64  `json:"free_bytes"`
	UsedBytes       int64  `json:"used_bytes"`
	Allocations     int    `json:"allocations"`
	HostAllocations int    `json:"host_allocations"`
}

type DeleteSolutionResp struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}
