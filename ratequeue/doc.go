/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package ratequeue provides a client-side request governor for remote HTTP APIs
// that enforce a global rate limit which is discovered dynamically from responses.
//
// Outbound requests are submitted as Descriptors and buffered in a FIFO queue.
// A scheduler loop wakes up on a fixed tick and dispatches at most one descriptor
// per tick while the learned request budget permits it. The budget (remaining
// request count and window reset time) is updated exclusively from response
// headers, and a 429 response pauses dispatching until the window resets.
//
// All queue and limiter state is owned by a single loop goroutine, so no locking
// is involved; submissions and completed exchanges are delivered to the loop over
// channels. The result of every submitted descriptor is reported through a
// one-shot Future which is settled exactly once.
package ratequeue
