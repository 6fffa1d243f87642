package collab

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "socialgraph/backend/pkg/errors"
)

func TestNewJWTAuthenticator_RequiresSecret(t *testing.T) {
	_, err := NewJWTAuthenticator("", time.Hour)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
}

func TestJWTAuthenticator_RoundTrip(t *testing.T) {
	a, err := NewJWTAuthenticator("test-secret-with-enough-length-123", time.Hour)
	require.NoError(t, err)

	token, err := a.Issue(Identity{ID: "u-1", AuthType: "google", Username: "alice"})
	require.NoError(t, err)

	for _, raw := range []string{token, "Bearer " + token} {
		id, err := a.Authenticate(context.Background(), raw)
		require.NoError(t, err)
		assert.Equal(t, &Identity{ID: "u-1", AuthType: "google", Username: "alice"}, id)
	}
}

func TestJWTAuthenticator_Rejects(t *testing.T) {
	a, err := NewJWTAuthenticator("test-secret-with-enough-length-123", time.Hour)
	require.NoError(t, err)
	other, err := NewJWTAuthenticator("another-secret-with-enough-length", time.Hour)
	require.NoError(t, err)

	foreign, err := other.Issue(Identity{ID: "u-1", Username: "alice"})
	require.NoError(t, err)

	expired, err := a.Issue(Identity{ID: "u-1", Username: "alice"})
	require.NoError(t, err)
	later := time.Now().Add(2 * time.Hour)

	noUser, err := a.Issue(Identity{ID: "u-2"})
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Username: "alice"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		now   func() time.Time
	}{
		{"empty", "", nil},
		{"garbage", "not-a-token", nil},
		{"wrong secret", foreign, nil},
		{"expired", expired, func() time.Time { return later }},
		{"missing username", noUser, nil},
		{"unsigned", unsigned, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.now = time.Now
			if tt.now != nil {
				a.now = tt.now
			}
			_, err := a.Authenticate(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}
