package notion

import (
	"encoding/json"
	"io"
	"net/http"
)

// APIError is an error answer from the Notion API. Error returns the
// provider's message unchanged.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

// apiErrorTransport turns every non-2xx response into an *APIError.
// notionapi only retries on a 429 response, so surfacing it as a transport
// error leaves exactly one attempt per call.
type apiErrorTransport struct {
	base http.RoundTripper
}

func (t apiErrorTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return res, nil
	}
	defer res.Body.Close()

	apiErr := &APIError{Status: res.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = string(raw)
	}
	apiErr.Status = res.StatusCode
	return nil, apiErr
}
