// Raw authorized access to arbitrary Web API paths
package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/spotui/internal/auth"
)

// APIService performs raw authorized requests, for debugging and the `api` command.
type APIService struct {
	client Requester
}

// NewAPIService creates a raw API client over client.
func NewAPIService(client Requester) *APIService {
	return &APIService{client: client}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to path (relative to the API base, or absolute) and returns the raw response.
//
// Non-2xx API responses are returned as data; only transport and authentication failures are errors.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	resp, err := a.client.AuthorizedRequest(ctx, path, auth.RequestOptions{Method: http.MethodGet})

	var apiErr *auth.APIError
	switch {
	case errors.As(err, &apiErr):
		return newAPIResponse(apiErr.StatusCode, nil, apiErr.Body), nil
	case err != nil:
		return nil, err
	}
	return newAPIResponse(resp.StatusCode, resp.Header, resp.Body), nil
}

func newAPIResponse(status int, header http.Header, body []byte) *APIResponse {
	if header == nil {
		header = http.Header{}
	}
	r := &APIResponse{StatusCode: status, Headers: header, Body: body}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		r.IsJSON = true
		r.JSONData = jsonData
	}
	return r
}
