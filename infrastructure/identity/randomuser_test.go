package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autocloudskill/config"
)

func TestGenerateProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "name,location", r.URL.Query().Get("inc"))
		w.Write([]byte(`{"results":[{"name":{"first":"Ann","last":"Lee"},"location":{"country":"Canada"}}]}`))
	}))
	defer server.Close()

	gen := NewGenerator(config.ServicesConfig{IdentityURL: server.URL}, zap.NewNop())
	profile, err := gen.GenerateProfile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Ann", profile.FirstName)
	assert.Equal(t, "Lee", profile.LastName)
	assert.Equal(t, "Canada", profile.Country)
	assert.Empty(t, profile.Email)
	assert.GreaterOrEqual(t, len(profile.Password), 16)
}

func TestGenerateProfileEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	gen := NewGenerator(config.ServicesConfig{IdentityURL: server.URL}, zap.NewNop())
	_, err := gen.GenerateProfile(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no results")
}

func TestGeneratePassword(t *testing.T) {
	password, err := GeneratePassword(16)
	require.NoError(t, err)
	assert.Len(t, password, 16)

	assert.True(t, strings.ContainsAny(password, passwordLower), "missing lowercase")
	assert.True(t, strings.ContainsAny(password, passwordUpper), "missing uppercase")
	assert.True(t, strings.ContainsAny(password, passwordDigits), "missing digit")
	assert.True(t, strings.ContainsAny(password, passwordSymbols), "missing symbol")
}

func TestGeneratePasswordEnforcesMinimumLength(t *testing.T) {
	password, err := GeneratePassword(3)
	require.NoError(t, err)
	assert.Len(t, password, 8)
}
