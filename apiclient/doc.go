/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package apiclient provides an authorized façade over the rate-limited
// dispatch queue of the ratequeue package. It shapes outbound calls (JSON
// payload serialization, bearer authorization, content headers), hands them to
// the queue as descriptors and returns one-shot futures with the results.
package apiclient
