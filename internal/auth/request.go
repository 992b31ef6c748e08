package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/spotui/internal/shared"
)

// RequestOptions describes a Web API call. Method defaults to GET; Body is JSON encoded.
type RequestOptions struct {
	Method string
	Query  url.Values
	Body   any
	Header http.Header
}

// Response is a successful (2xx) Web API response.
//
// NoContent is set for 204 and for any empty body, so callers never mistake "nothing to decode" for success data.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	NoContent  bool
}

// Decode unmarshals the body into v, or returns [shared.ErrNoContent].
func (r *Response) Decode(v any) error {
	if r.NoContent {
		return shared.ErrNoContent
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// AuthorizedRequest sends a bearer-authenticated request to endpoint, a path under the API base URL or an absolute
// URL (pagination links).
//
// A lapsed credential is refreshed before sending. A 401 triggers exactly one refresh and retry; a second 401, or a
// failed refresh at that point, yields [shared.ErrAuthenticationFailed]. Other non-2xx responses return [*APIError].
func (m *TokenManager) AuthorizedRequest(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}

	var payload []byte
	if opts.Body != nil {
		var err error
		if payload, err = json.Marshal(opts.Body); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	target := m.resolve(endpoint, opts.Query)

	token, err := m.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := m.send(ctx, target, opts, payload, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		m.logger.Debug("access token rejected, refreshing", "endpoint", endpoint)

		if err := m.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrAuthenticationFailed, err)
		}

		if resp, err = m.send(ctx, target, opts, payload, m.Credential().AccessToken); err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", shared.ErrAuthenticationFailed, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: resp.Body})
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: resp.Body}
	}

	resp.NoContent = resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(resp.Body)) == 0
	return resp, nil
}

func (m *TokenManager) resolve(endpoint string, query url.Values) string {
	target := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		target = strings.TrimSuffix(m.config.APIURL, "/") + "/" + strings.TrimPrefix(endpoint, "/")
	}

	if len(query) == 0 {
		return target
	}

	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + query.Encode()
}

func (m *TokenManager) send(ctx context.Context, target string, opts RequestOptions, payload []byte, token string) (*Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
