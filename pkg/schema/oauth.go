package schema

import "encoding/json"

///////////////////////////////////////////////////////////////////////////////
// TYPES

// OAuthProxyRequest is the decoded body of POST /oauth/proxy (§4.6.1): the
// edge forwards this request to an arbitrary target on the caller's behalf
// since the browser UI cannot make the call directly (CORS).
type OAuthProxyRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// OAuthProxyResponse is the normalized response returned to the caller.
// Body is parsed as JSON when possible, else the raw response text.
type OAuthProxyResponse struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       any               `json:"body,omitempty"`
}
