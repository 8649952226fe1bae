package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyProviderDefaultHeader(t *testing.T) {
	p := NewAPIKeyProvider("secret", "", "")

	require.Equal(t, SchemeAPIKey, p.Scheme())
	require.True(t, p.IsValid())

	headers, err := p.GetHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-API-Key": "secret"}, headers)
}

func TestAPIKeyProviderCustomHeaderAndPrefix(t *testing.T) {
	p := NewAPIKeyProvider("secret", "Authorization", "Bearer ")

	headers, err := p.GetHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer secret"}, headers)
}

func TestAPIKeyProviderChallengeAlwaysFails(t *testing.T) {
	p := NewAPIKeyProvider("secret", "", "")

	for _, status := range []int{401, 403, 500} {
		_, err := p.HandleChallenge(context.Background(), &Challenge{StatusCode: status})
		assert.ErrorIs(t, err, ErrInvalidCredentials, "status %d", status)
	}
}

func TestAPIKeyProviderCleanup(t *testing.T) {
	p := NewAPIKeyProvider("secret", "", "")
	p.Cleanup()

	assert.False(t, p.IsValid())
	_, err := p.GetHeaders(context.Background())
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
