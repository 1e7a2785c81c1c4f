/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package ratequeue

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// limiterState tracks the request budget learned from server responses.
// It is owned by the queue's scheduler loop; remaining and resetAt are
// overwritten only from the most recently handled response.
type limiterState struct {
	remaining int
	resetAt   time.Time
}

// allow reports whether dispatching is permitted at the given moment.
// The budget may be stale once resetAt has passed; in that case requests
// are dispatched speculatively and the next response corrects the state.
func (s *limiterState) allow(now time.Time) bool {
	return s.remaining > 0 || !now.Before(s.resetAt)
}

// applySuccess overwrites the budget from the rate limiting headers of a
// successful response. Headers are authoritative over any prior local
// estimate; missing or non-numeric values keep the prior state.
func (s *limiterState) applySuccess(header http.Header, remainingHeader, resetHeader string) {
	if v := header.Get(remainingHeader); v != "" {
		if remaining, err := strconv.Atoi(v); err == nil && remaining >= 0 {
			s.remaining = remaining
		}
	}
	if v := header.Get(resetHeader); v != "" {
		if resetAt, ok := parseUnixEpoch(v); ok {
			s.resetAt = resetAt
		}
	}
}

// applyThrottle puts the limiter into the throttled state after a 429 response.
// A server-provided hint (Retry-After or the reset header) wins over the fixed cool-down.
func (s *limiterState) applyThrottle(header http.Header, resetHeader string, now time.Time, cooldown time.Duration) {
	s.remaining = 0
	if retryAfter, ok := parseRetryAfter(header.Get("Retry-After")); ok {
		s.resetAt = now.Add(retryAfter)
		return
	}
	if resetAt, ok := parseUnixEpoch(header.Get(resetHeader)); ok {
		s.resetAt = resetAt
		return
	}
	s.resetAt = now.Add(cooldown)
}

// parseUnixEpoch parses an absolute time expressed in (possibly fractional)
// seconds since the Unix epoch.
func parseUnixEpoch(v string) (time.Time, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return time.Time{}, false
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))), true
}

// parseRetryAfter parses a Retry-After header value in both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	parsedInt, parseIntErr := strconv.Atoi(v)
	if parseIntErr != nil {
		parsedTime, parsedTimeErr := time.Parse(time.RFC1123, v)
		if parsedTimeErr != nil {
			return 0, false
		}
		return time.Until(parsedTime), true
	}
	if parsedInt < 0 {
		return 0, false
	}
	return time.Duration(parsedInt) * time.Second, true
}
