package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autocloudskill/config"
)

func newRelayTestClient(serverURL string) *RelayClient {
	return NewRelayClient(config.ServicesConfig{
		RelayBaseURL: serverURL,
		RelayAPIKey:  "test-key",
	}, zap.NewNop())
}

func TestRelayClientCreateAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, relayAddressesPath, r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "registration run", body["description"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(relayAddress{
			ID:          42,
			FullAddress: "mask42@mozmail.com",
			Enabled:     true,
		})
	}))
	defer server.Close()

	client := newRelayTestClient(server.URL)
	addr, err := client.CreateAddress(context.Background(), "registration run")
	require.NoError(t, err)

	assert.Equal(t, "42", addr.ID)
	assert.Equal(t, "mask42@mozmail.com", addr.Email)
	assert.True(t, addr.Enabled)
}

func TestRelayClientListAddresses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode([]relayAddress{
			{ID: 1, FullAddress: "a@mozmail.com", Enabled: true},
			{ID: 2, FullAddress: "b@mozmail.com", Enabled: false},
		})
	}))
	defer server.Close()

	client := newRelayTestClient(server.URL)
	addresses, err := client.ListAddresses(context.Background())
	require.NoError(t, err)

	require.Len(t, addresses, 2)
	assert.Equal(t, "a@mozmail.com", addresses[0].Email)
	assert.False(t, addresses[1].Enabled)
}

func TestRelayClientDeleteAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, relayAddressesPath+"42/", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newRelayTestClient(server.URL)
	require.NoError(t, client.DeleteAddress(context.Background(), "42"))
}

func TestRelayClientSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newRelayTestClient(server.URL)
	_, err := client.CreateAddress(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
