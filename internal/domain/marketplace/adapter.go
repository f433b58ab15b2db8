package marketplace

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
)

var (
	ErrAdapterNotConfigured = errors.New("marketplace: adapter not configured")
	ErrAdapterRejected      = errors.New("marketplace: request rejected by marketplace")
	ErrAdapterUnavailable   = errors.New("marketplace: marketplace temporarily unavailable")
	ErrAdapterRateLimited   = errors.New("marketplace: rate limited by marketplace")
	ErrAdapterAuthFailed    = errors.New("marketplace: authentication failed")
	ErrCredentialsNotFound  = errors.New("marketplace: credentials not found for tenant")
)

// Request is the envelope handed to an adapter for one outbound call.
type Request struct {
	TenantID uuid.UUID
	// Action is the action code of the owning job
	Action string
	// ProductID is set for product-scoped actions
	ProductID *uuid.UUID
	// Payload is the opaque outbound body built by the payload builder
	Payload []byte
}

// Response is the adapter's result for a successful call.
type Response struct {
	// StatusCode is the upstream HTTP status
	StatusCode int
	// Body is the opaque response payload, stored as the job's result data
	Body []byte
	// ExternalID is the marketplace-side identifier of the affected listing,
	// when the marketplace reports one
	ExternalID string
}

// Adapter is the port to one external marketplace. One implementation per
// marketplace; wire details (session handling, token refresh) live behind
// it and are not the pipeline's concern.
type Adapter interface {
	// Code identifies the marketplace this adapter serves
	Code() Code

	// Execute performs one outbound call. It must honor ctx cancellation and
	// return an error classified by Retryable for the dispatcher's retry
	// accounting.
	Execute(ctx context.Context, req Request) (*Response, error)
}

// Registry resolves the adapter for a marketplace. Injected into the
// dispatcher so adapters stay replaceable in tests.
type Registry interface {
	// Adapter returns the adapter for the given marketplace code, or
	// ErrAdapterNotConfigured
	Adapter(code Code) (Adapter, error)
}

// Retryable reports whether an adapter error is worth retrying. Outages,
// throttling and credential problems are transient: tokens refresh and
// operators fix configuration while the retry budget keeps the job alive.
// An explicit rejection is the marketplace's final verdict on the request.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrAdapterUnavailable),
		errors.Is(err, ErrAdapterRateLimited),
		errors.Is(err, ErrAdapterAuthFailed),
		errors.Is(err, ErrCredentialsNotFound):
		return true
	default:
		return false
	}
}

// ClassifyStatus maps an upstream HTTP status class to an adapter error.
// 2xx maps to nil.
func ClassifyStatus(statusCode int) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrAdapterAuthFailed
	case statusCode == http.StatusTooManyRequests:
		return ErrAdapterRateLimited
	case statusCode >= 500:
		return ErrAdapterUnavailable
	default:
		return ErrAdapterRejected
	}
}
