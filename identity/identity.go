// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

// Package identity resolves the owner identity the engine acts on behalf
// of. The identity provider itself is a black box owned by the host app;
// all this package sees is the claims map the provider hands over after a
// session is established.
package identity

import (
	"errors"

	"github.com/spf13/cast"
)

var (
	ErrNoOwnerClaim = errors.New("claims carry no owner identity")
)

// default claim keys, overridable per provider.
const (
	DefaultOwnerClaimKey = "sub"
	DefaultEmailClaimKey = "email"
)

// Identity is the resolved identity consumed by the publishing engine and
// the connection registry.
type Identity struct {
	// Owner is the stable identifier the backend scopes content by.
	Owner string

	// Email is the address on file, when the provider exposes one.
	Email string
}

// Resolver extracts an Identity from a provider claims map.
type Resolver struct {
	// OwnerClaimKey is the claim holding the owner identifier.
	// (Optional) defaults to "sub".
	OwnerClaimKey string

	// EmailClaimKey is the claim holding the email address.
	// (Optional) defaults to "email".
	EmailClaimKey string
}

// FromClaims resolves the identity out of a claims map. Claim values are
// cast leniently since providers disagree on types for simple claims.
func (r Resolver) FromClaims(claims map[string]interface{}) (Identity, error) {
	ownerKey := r.OwnerClaimKey
	if ownerKey == "" {
		ownerKey = DefaultOwnerClaimKey
	}
	emailKey := r.EmailClaimKey
	if emailKey == "" {
		emailKey = DefaultEmailClaimKey
	}

	owner := cast.ToString(claims[ownerKey])
	if owner == "" {
		return Identity{}, ErrNoOwnerClaim
	}
	return Identity{
		Owner: owner,
		Email: cast.ToString(claims[emailKey]),
	}, nil
}
