package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleAuthorizationServerMetadata(t *testing.T) {
	d := &Discovery{Metadata: ServerMetadata{
		Issuer:                "https://auth.example",
		AuthorizationEndpoint: "https://auth.example/authorize",
		TokenEndpoint:         "https://auth.example/token",
		JWKSURI:               "https://auth.example/.well-known/jwks.json",
	}}

	rec := httptest.NewRecorder()
	d.HandleAuthorizationServerMetadata(rec, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil))

	var got ServerMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "https://auth.example", got.Issuer)
}

func TestHandleProtectedResourceMetadata(t *testing.T) {
	d := &Discovery{Resource: ResourceMetadata{
		Resource:             "https://mcp.example",
		AuthorizationServers: []string{"https://auth.example"},
	}}

	rec := httptest.NewRecorder()
	d.HandleProtectedResourceMetadata(rec, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil))

	var got ResourceMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"https://auth.example"}, got.AuthorizationServers)
}

func TestHandleRegisterDisabledReturns404(t *testing.T) {
	d := &Discovery{RegistrationEnabled: false}
	rec := httptest.NewRecorder()
	d.HandleRegister(rec, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRegisterEnabledIssuesClientID(t *testing.T) {
	d := &Discovery{RegistrationEnabled: true}
	body := strings.NewReader(`{"client_name":"test-client"}`)
	rec := httptest.NewRecorder()
	d.HandleRegister(rec, httptest.NewRequest(http.MethodPost, "/register", body))

	require.Equal(t, http.StatusCreated, rec.Code)
	var got registrationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.ClientID)
	assert.Equal(t, "test-client", got.ClientName)
}

func TestWWWAuthenticateHeader(t *testing.T) {
	d := &Discovery{}
	header := d.WWWAuthenticateHeader("https://mcp.example/.well-known/oauth-protected-resource")
	assert.Contains(t, header, `Bearer resource_metadata=`)
}
