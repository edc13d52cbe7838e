package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ForwardRequest is an inbound API call to relay as-is.
type ForwardRequest struct {
	Method      string
	Path        string
	Query       url.Values
	Body        io.Reader
	ContentType string
}

// Relay is the backend's answer, untouched.
type Relay struct {
	Status      int
	ContentType string
	Disposition string // set on file downloads
	Body        []byte
}

// Forward relays a request and returns whatever came back. Only transport
// failures are errors; a 4xx or 5xx answer is a normal Relay.
func (c *Client) Forward(ctx context.Context, fr ForwardRequest) (*Relay, error) {
	req, err := http.NewRequestWithContext(ctx, fr.Method, c.endpoint(fr.Path, fr.Query), fr.Body)
	if err != nil {
		return nil, err
	}
	if fr.ContentType != "" {
		req.Header.Set("Content-Type", fr.ContentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forward %s %s: %w", fr.Method, fr.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("forward %s %s: read body: %w", fr.Method, fr.Path, err)
	}
	return &Relay{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Disposition: resp.Header.Get("Content-Disposition"),
		Body:        body,
	}, nil
}
