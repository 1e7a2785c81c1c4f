/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package apiclient

import (
	"context"

	"github.com/acronis/go-appkit/httpclient"
)

// AuthProvider provides bearer tokens for outgoing requests.
type AuthProvider = httpclient.AuthProvider

// StaticAuthProvider is an AuthProvider that always returns the same token.
type StaticAuthProvider struct {
	Token string
}

// NewStaticAuthProvider creates a new StaticAuthProvider with the given token.
func NewStaticAuthProvider(token string) *StaticAuthProvider {
	return &StaticAuthProvider{Token: token}
}

// GetToken implements the AuthProvider interface.
func (p *StaticAuthProvider) GetToken(_ context.Context, _ ...string) (string, error) {
	return p.Token, nil
}
