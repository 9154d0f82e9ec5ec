package health

// Probe status values returned in the body.
const (
	StatusHealthy = "healthy"
	StatusReady   = "ready"
)

// Data is the single-field probe payload.
type Data struct {
	Status string `json:"status" doc:"Probe status" enum:"healthy,ready" example:"healthy"`
}

// Output is the response wrapper for both probe endpoints.
type Output struct {
	Body Data
}
