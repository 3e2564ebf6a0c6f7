package eighttracks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// envelope holds the fields every 8tracks response carries.
type envelope struct {
	Status string          `json:"status"`
	Errors json.RawMessage `json:"errors"`
}

// messages flattens the "errors" field, which the API sends as null, a
// string, a list of strings or an object of field -> messages.
func (e envelope) messages() []string {
	raw := bytes.TrimSpace(e.Errors)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil
		}
		return []string{single}
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		var out []string
		for field, v := range fields {
			out = append(out, field+" "+strings.Trim(string(v), `"[]`))
		}
		return out
	}

	return []string{string(raw)}
}

// call makes an HTTP request to the 8tracks API and returns the raw body.
//
// GET requests carry params in the query string, POST requests as a form.
// A non-empty userToken is sent in the X-User-Token header. Non-2xx
// responses and bodies with a non-null "errors" field become *Error.
// There is no retry; callers decide whether to try again.
func (c *Client) call(ctx context.Context, method, resource string, params url.Values, userToken string) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}

	endpoint := c.baseURL + strings.TrimPrefix(resource, "/")

	var body io.Reader
	if method == http.MethodGet {
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("X-Api-Version", APIVersion)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "orochi/1.0")
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if userToken != "" {
		req.Header.Set("X-User-Token", userToken)
	}

	c.logDebugf("eighttracks: %s %s", method, resource)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(data, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Messages = env.messages()
		}
		return nil, apiErr
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", decodeErr)
	}

	if msgs := env.messages(); len(msgs) > 0 {
		return nil, &Error{StatusCode: resp.StatusCode, Messages: msgs}
	}

	c.logDebugf("eighttracks: %s %s succeeded", method, resource)
	return data, nil
}

// get performs a GET call and decodes the body into out.
func (c *Client) get(ctx context.Context, resource string, params url.Values, userToken string, out interface{}) error {
	data, err := c.call(ctx, http.MethodGet, resource, params, userToken)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("eighttracks: failed to decode %s: %w", resource, err)
	}
	return nil
}

// post performs a POST call and decodes the body into out.
func (c *Client) post(ctx context.Context, resource string, params url.Values, userToken string, out interface{}) error {
	data, err := c.call(ctx, http.MethodPost, resource, params, userToken)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("eighttracks: failed to decode %s: %w", resource, err)
	}
	return nil
}
