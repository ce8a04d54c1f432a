package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/inbucket/courier/pkg/rest/model"
)

// httpClient allows http.Client to be mocked for tests
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Error is returned when the server responds with a non-200 status.  Fields holds per-field
// messages for validation failures.
type Error struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %v", e.StatusCode)
	}
	return fmt.Sprintf("%v: %s", e.StatusCode, e.Message)
}

// Generic REST restClient
type restClient struct {
	client  httpClient
	baseURL *url.URL
}

// do performs an HTTP request with this client and returns the response.
func (c *restClient) do(
	ctx context.Context,
	method, uri string,
	query url.Values,
	body []byte,
) (*http.Response, error) {
	url := c.baseURL.JoinPath(uri)
	if len(query) > 0 {
		url.RawQuery = query.Encode()
	}
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url.String(), r)
	if err != nil {
		return nil, fmt.Errorf("%s for %q: %v", method, url, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}

// doJSON encodes in as the request body when non-nil, performs an HTTP request with this client
// and decodes the JSON response into out.
func (c *restClient) doJSON(
	ctx context.Context,
	method, uri string,
	query url.Values,
	in, out any,
) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}
	resp, err := c.do(ctx, method, uri, query, body)
	if err != nil {
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusOK {
		if out == nil {
			return nil
		}
		// Decode response body
		return json.NewDecoder(resp.Body).Decode(out)
	}

	return decodeError(resp)
}

// decodeError builds an *Error from a failed response, using the JSON error body if present.
func decodeError(resp *http.Response) error {
	e := &Error{StatusCode: resp.StatusCode}
	var jerr model.JSONErrorV1
	if err := json.NewDecoder(resp.Body).Decode(&jerr); err == nil {
		e.Message = jerr.Error
		e.Fields = jerr.Fields
	}
	return e
}
