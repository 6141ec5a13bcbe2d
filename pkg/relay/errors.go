package relay

import (
	"net/http"
)

type Kind int

const (
	// KindBadRequest covers bodies that are not JSON or carry wrong-typed fields.
	KindBadRequest Kind = iota
	// KindUpstream covers transport failures, non-2xx answers and non-zero errcode.
	KindUpstream
	KindUpstreamTimeout
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUpstream:
		return "upstream"
	case KindUpstreamTimeout:
		return "upstream_timeout"
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error to a response status. Existing callers expect
// 400 for every failure; distinguish switches upstream failures to 502/504.
func (e *Error) HTTPStatus(distinguish bool) int {
	if !distinguish {
		return http.StatusBadRequest
	}
	switch e.Kind {
	case KindUpstream:
		return http.StatusBadGateway
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusBadRequest
}
