// Package health serves the liveness and readiness probe endpoints.
package health

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Register wires the probe routes into the provided API.
func Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness probe",
		Tags:        []string{"Probes"},
	}, healthHandler)

	huma.Register(api, huma.Operation{
		OperationID: "get-ready",
		Method:      http.MethodGet,
		Path:        "/ready",
		Summary:     "Readiness probe",
		Tags:        []string{"Probes"},
	}, readyHandler)
}

func healthHandler(context.Context, *struct{}) (*Output, error) {
	return &Output{Body: Data{Status: StatusHealthy}}, nil
}

func readyHandler(context.Context, *struct{}) (*Output, error) {
	return &Output{Body: Data{Status: StatusReady}}, nil
}
