package storage

import "net/http"

// ClientMessage is the only detail a client learns about a rejected upload.
const ClientMessage = "upload: rejected"

type Kind int

const (
	KindBadRequest Kind = iota
	KindTooLarge
	KindUnsupported
	KindTooMany
)

func (k Kind) Status() int {
	switch k {
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUnsupported:
		return http.StatusUnsupportedMediaType
	case KindTooMany:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

func (k Kind) String() string {
	switch k {
	case KindTooLarge:
		return "too_large"
	case KindUnsupported:
		return "unsupported"
	case KindTooMany:
		return "too_many"
	default:
		return "bad_request"
	}
}

// Rejection is returned when an upload fails admission. Reason is for logs
// only.
type Rejection struct {
	Kind   Kind
	Reason string
}

func (r *Rejection) Error() string {
	return "upload rejected: " + r.Reason
}
