package transport

import (
	"encoding/json"
	"net/url"

	"github.com/pkg/errors"
)

// Request describes one call to the backend. Body is JSON encoded when
// non-nil. NoAuth marks the refresh exchange itself, which must not carry the
// bearer token it is trying to replace.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	NoAuth bool
}

// Response is the decoded-on-demand reply to a successful request.
type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrap(err, "[Response.Decode] unmarshal")
	}
	return nil
}

// Envelope threads the replay-once marker through the pipeline explicitly,
// instead of a hidden mutable flag on the request itself. A request whose
// envelope is already Retried must not re-enter the refresh gate.
type Envelope struct {
	Req     *Request
	Retried bool
}
