// Package httpjson contains http utils to deal with remote JSON services.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/PaesslerAG/jsonpath"
)

// StatusError reports a non successful HTTP status.
type StatusError struct {
	Method, Host, Path string
	Status             string
	Code               int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cannot http %s %v/%v: %v", e.Method, e.Host, e.Path, e.Status)
}

// do sends req and returns the body of a 2xx response.
func do(client *http.Client, req *http.Request) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Method: req.Method, Host: req.URL.Host, Path: req.URL.Path, Status: resp.Status, Code: resp.StatusCode}
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Get performs an HTTP GET request and returns the raw body.
func Get(ctx context.Context, client *http.Client, addr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, err
	}
	return do(client, req)
}

// GetJSON performs an HTTP GET request and unmarshals the JSON response into data.
func GetJSON(ctx context.Context, client *http.Client, addr string, data any) error {
	body, err := Get(ctx, client, addr)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, data)
}

// PostJSON posts in as JSON and unmarshals the JSON response into out, unless out is nil.
func PostJSON(ctx context.Context, client *http.Client, addr string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := do(client, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// Path evaluates a JSONPath expression on a decoded JSON document.
//
// jsonpath is never clear about whether it returns a list of one answer or a
// single answer: when first is set, a list is reduced to its first element.
func Path(path string, jobj any, first bool) (any, error) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return nil, fmt.Errorf("error evaluating %q: %w", path, err)
	}
	if jlist, ok := jval.([]any); ok && first {
		if len(jlist) == 0 {
			return nil, fmt.Errorf("error evaluating %q: no match", path)
		}
		jval = jlist[0]
	}
	return jval, nil
}

// String evaluates path and expects a string.
func String(path string, jobj any) (string, error) {
	jval, err := Path(path, jobj, true)
	if err != nil {
		return "", err
	}
	s, ok := jval.(string)
	if !ok {
		return "", fmt.Errorf("error evaluating %q: not a string %v", path, jval)
	}
	return s, nil
}

// List evaluates path and expects a list. A missing path is an empty list.
func List(path string, jobj any) ([]any, error) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return nil, fmt.Errorf("error evaluating %q: %w", path, err)
	}
	switch v := jval.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	default:
		return []any{v}, nil
	}
}
