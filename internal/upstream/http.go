// Package upstream talks to the planner and content back-ends and turns
// their loosely shaped answers into the records of pkg/api.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/petrijr/studyflow/pkg/api"
)

// DefaultTimeout bounds a single outbound request.
const DefaultTimeout = 30 * time.Second

const maxResponseBytes = 4 << 20

var messageKeys = []string{"error", "message", "detail"}

// poster sends JSON requests with a per-request timeout.
type poster struct {
	service string
	url     string
	client  *http.Client
	timeout time.Duration
}

func newPoster(service, url string, client *http.Client, timeout time.Duration) poster {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return poster{service: service, url: url, client: client, timeout: timeout}
}

// post sends body and parses the response. Transport failures, timeouts
// and 5xx answers come back as a transient *api.UpstreamError, 4xx answers
// as a business one carrying the back-end's message.
func (p poster) post(ctx context.Context, body any) (Value, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Value{}, fmt.Errorf("%s: encode request: %w", p.service, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return Value{}, fmt.Errorf("%s: build request: %w", p.service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Value{}, &api.UpstreamError{Service: p.service, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Value{}, &api.UpstreamError{Service: p.service, StatusCode: resp.StatusCode, Transient: true, Err: err}
	}

	switch {
	case resp.StatusCode >= 500:
		return Value{}, &api.UpstreamError{
			Service:    p.service,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data, resp.StatusCode),
			Transient:  true,
		}
	case resp.StatusCode >= 400:
		return Value{}, &api.UpstreamError{
			Service:    p.service,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data, resp.StatusCode),
		}
	}

	v, err := Parse(data)
	if err != nil {
		return Value{}, fmt.Errorf("%s: decode response: %w", p.service, err)
	}
	return v.Unwrap(), nil
}

// errorMessage picks the back-end's explanation out of an error body,
// falling back to the status text.
func errorMessage(data []byte, status int) string {
	if v, err := Parse(data); err == nil {
		v = v.Unwrap()
		if s, ok := v.Str(); ok && strings.TrimSpace(s) != "" {
			return s
		}
		if items := v.Items(); len(items) > 0 {
			v = items[0]
		}
		for _, k := range messageKeys {
			if f, ok := v.Get(k); ok && f.Truthy() {
				return f.Text()
			}
		}
	}
	if s := strings.TrimSpace(string(data)); s != "" && len(s) <= 200 && !strings.HasPrefix(s, "{") {
		return s
	}
	return http.StatusText(status)
}

// isTransient reports whether err is worth retrying.
func isTransient(err error) bool {
	return errors.Is(err, api.ErrUpstreamTransient)
}
