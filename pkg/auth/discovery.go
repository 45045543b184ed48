package auth

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/richard-senior/mcp/internal/logger"
)

// ServerMetadata is served from /.well-known/oauth-authorization-server
//
type ServerMetadata struct {
	Issuer                 string `json:"issuer"`
	AuthorizationEndpoint  string `json:"authorization_endpoint"`
	TokenEndpoint          string `json:"token_endpoint"`
	JWKSURI                string `json:"jwks_uri"`
	RegistrationEndpoint   string `json:"registration_endpoint,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported []string `json:"response_types_supported,omitempty"`
	GrantTypesSupported    []string `json:"grant_types_supported,omitempty"`
}

// ResourceMetadata is served from /.well-known/oauth-protected-resource.
type ResourceMetadata struct {
	Resource             string `json:"resource"`
	AuthorizationServers []string `json:"authorization_servers"`
}

// Discovery mounts the OAuth metadata endpoints an HTTP-based MCP
// transport may expose. RegistrationEnabled controls whether
// /register answers the RFC 7591 stub or 404s.
type Discovery struct {
	Metadata            ServerMetadata
	Resource            ResourceMetadata
	RegistrationEnabled bool
}

func (d *Discovery) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("auth: failed to encode discovery response", err)
	}
}

// HandleAuthorizationServerMetadata serves
// /.well-known/oauth-authorization-server.
func (d *Discovery) HandleAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	d.writeJSON(w, d.Metadata)
}

// HandleProtectedResourceMetadata serves
// /.well-known/oauth-protected-resource.
func (d *Discovery) HandleProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	d.writeJSON(w, d.Resource)
}

// registrationRequest and registrationResponse model the minimal subset of
// RFC 7591 dynamic client registration this stub honors: it accepts any
// client metadata and echoes back a generated client_id, it never persists
// registrations or issues real client secrets.
type registrationRequest struct {
	ClientName   string `json:"client_name,omitempty"`
	RedirectURIs []string `json:"redirect_uris,omitempty"`
}

type registrationResponse struct {
	ClientID     string `json:"client_id"`
	ClientName   string `json:"client_name,omitempty"`
	RedirectURIs []string `json:"redirect_uris,omitempty"`
}

// HandleRegister is the optional RFC 7591 /register stub. It answers 404
// unless RegistrationEnabled is true.
func (d *Discovery) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if !d.RegistrationEnabled {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid registration request", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	d.writeJSON(w, registrationResponse{
		ClientID: generateClientID(),
		ClientName: req.ClientName,
		RedirectURIs: req.RedirectURIs,
	})
}

func generateClientID() string {
	return "mcp-client-" + uuid.NewString()
}

// WWWAuthenticateHeader is the 401 challenge value the HTTP transport sends
// on auth failure.
func (d *Discovery) WWWAuthenticateHeader(resourceMetadataURL string) string {
	return `Bearer resource_metadata="` + resourceMetadataURL + `"`
}
