// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airlift-media/airlift/identity"
)

func TestProvideIdentity(t *testing.T) {
	tests := []struct {
		description string
		config      EngineConfig
		expected    identity.Identity
		expectedErr error
	}{
		{
			description: "resolves provider claims",
			config: EngineConfig{
				Claims: map[string]interface{}{
					"sub":   "usr-123",
					"email": "studio@example.com",
				},
			},
			expected: identity.Identity{Owner: "usr-123", Email: "studio@example.com"},
		},
		{
			description: "claim key overrides",
			config: EngineConfig{
				Claims:        map[string]interface{}{"username": "usr-456"},
				OwnerClaimKey: "username",
			},
			expected: identity.Identity{Owner: "usr-456"},
		},
		{
			description: "claims win over pinned owner",
			config: EngineConfig{
				Claims: map[string]interface{}{"sub": "usr-123"},
				Owner:  "usr-pinned",
			},
			expected: identity.Identity{Owner: "usr-123"},
		},
		{
			description: "pinned owner fallback",
			config:      EngineConfig{Owner: "usr-pinned"},
			expected:    identity.Identity{Owner: "usr-pinned"},
		},
		{
			description: "claims without an owner claim",
			config: EngineConfig{
				Claims: map[string]interface{}{"email": "studio@example.com"},
			},
			expectedErr: identity.ErrNoOwnerClaim,
		},
		{
			description: "nothing configured",
			config:      EngineConfig{},
			expectedErr: errNoOwnerIdentity,
		},
	}

	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			id, err := provideIdentity(tc.config)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, id)
		})
	}
}
