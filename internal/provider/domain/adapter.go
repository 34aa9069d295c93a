package domain

import (
	"context"
	"net/http"
)

// Adapter verifies and parses one payment provider's webhook format.
// Verify is the sole authentication mechanism for the inbound entry point.
type Adapter interface {
	Provider() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*Event, error)
}
