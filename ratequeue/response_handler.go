/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package ratequeue

import (
	"net/http"
	"strconv"

	"github.com/acronis/go-appkit/log"
)

// handleCompletion interprets one finished HTTP exchange: it updates the
// limiter state, emits a diagnostic record for failures and settles the
// caller's future. A failed request never halts the scheduler loop.
func (q *Queue) handleCompletion(c completion) {
	q.inFlight--

	d := c.call.descriptor
	res := c.res
	fields := []log.Field{
		log.String("request_id", c.call.id),
		log.String("method", d.Method),
		log.String("uri", d.URL),
	}

	switch {
	case res.Err != nil:
		q.logger.Error("request failed on transport level", append(fields, log.Error(res.Err))...)
		q.collector.RequestDispatched(d.Method, "0", c.call.enqueuedAt)

	case res.StatusCode == http.StatusTooManyRequests:
		q.limiter.applyThrottle(res.Header, q.resetHeader, q.now(), q.throttleCooldown)
		q.logger.Warn("rate limit exceeded, dispatching is paused", append(fields,
			log.Int("status", res.StatusCode),
			log.Bytes("response_body", res.Body),
			log.Time("reset_at", q.limiter.resetAt),
		)...)
		q.collector.Throttled()
		q.collector.RequestDispatched(d.Method, strconv.Itoa(res.StatusCode), c.call.enqueuedAt)

	case res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices:
		q.logger.Error("request finished with error status", append(fields,
			log.Int("status", res.StatusCode),
			log.Bytes("response_body", res.Body),
		)...)
		q.collector.RequestDispatched(d.Method, strconv.Itoa(res.StatusCode), c.call.enqueuedAt)

	default:
		q.limiter.applySuccess(res.Header, q.remainingHeader, q.resetHeader)
		q.collector.RequestDispatched(d.Method, strconv.Itoa(res.StatusCode), c.call.enqueuedAt)
	}

	c.call.future.resolve(res)
}
