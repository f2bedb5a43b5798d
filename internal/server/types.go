package server

// HealthResponse reports whether uploads can currently be stored.
// Status is "up" or "down".
type HealthResponse struct {
	Status string `json:"status"`
}
