package common

// ListResponse wraps a list with its length
type ListResponse struct {
	Data  interface{} `json:"data"`
	Count int         `json:"count"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status      string            `json:"status"`
	Time        string            `json:"time"`
	Environment string            `json:"environment"`
	Checks      map[string]string `json:"checks,omitempty"`
}
