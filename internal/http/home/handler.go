// Package home serves the plain-text greeting on the root route.
package home

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

const contentTypeText = "text/plain; charset=utf-8"

// Output carries a raw body so huma skips format negotiation.
type Output struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// Register wires GET / into the provided API. The greeting is copied once;
// every request is answered with the same bytes.
func Register(api huma.API, greeting string) {
	body := []byte(greeting)

	huma.Register(api, huma.Operation{
		OperationID: "get-home",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Greeting",
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Greeting text",
				Content: map[string]*huma.MediaType{
					"text/plain": {Schema: &huma.Schema{Type: huma.TypeString}},
				},
			},
		},
	}, func(context.Context, *struct{}) (*Output, error) {
		return &Output{ContentType: contentTypeText, Body: body}, nil
	})
}
