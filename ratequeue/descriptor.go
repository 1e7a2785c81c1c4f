/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package ratequeue

import (
	"net/http"
	"time"
)

// Descriptor describes a single outbound HTTP call waiting to be dispatched.
// Descriptors are immutable once submitted: the queue reads them but never
// modifies them.
type Descriptor struct {
	// Method is an HTTP verb (GET, POST, PATCH, PUT, DELETE).
	Method string

	// URL is a fully-qualified target. The queue treats it as opaque and never parses it.
	URL string

	// Header contains request headers (authorization, content type and so on).
	Header http.Header

	// Body is an opaque request payload, may be empty.
	Body []byte

	// OnComplete, if set, is invoked exactly once with the final Result,
	// regardless of whether the dispatch succeeded or failed.
	OnComplete func(Result)
}

// Result is the outcome of a dispatched Descriptor.
// Callers distinguish application-level success and failure by StatusCode;
// Err is reserved for transport-level failures where no response was received
// and for descriptors resolved with ErrQueueClosed on shutdown.
type Result struct {
	// StatusCode is the HTTP status code of the response. Zero when Err is set.
	StatusCode int

	// Header contains the response headers.
	Header http.Header

	// Body is the raw response body.
	Body []byte

	// Err is a transport-level failure or ErrQueueClosed.
	Err error
}

// pendingCall is a Descriptor staged in the dispatch queue together with
// its settlement future and bookkeeping data.
type pendingCall struct {
	descriptor Descriptor
	future     *Future
	id         string
	enqueuedAt time.Time
}

// completion carries one finished HTTP exchange back to the scheduler loop.
type completion struct {
	call *pendingCall
	res  Result
}
