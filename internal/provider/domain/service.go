package domain

import (
	"context"
	"errors"
	"net/http"
)

// Result reports the outcome of ingesting one provider event.
type Result struct {
	Duplicate       bool
	ProviderEventID string
	EventType       string
}

type Service interface {
	Ingest(ctx context.Context, provider string, payload []byte, headers http.Header) (*Result, error)
}

var (
	ErrInvalidProvider  = errors.New("invalid_provider")
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
	// ErrUnknownPrice is fatal for the event: an unmapped price must never
	// silently default to a tier.
	ErrUnknownPrice         = errors.New("unknown_price")
	ErrOrganizationNotFound = errors.New("organization_not_found")
)
