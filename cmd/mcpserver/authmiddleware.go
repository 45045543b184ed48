package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/richard-senior/mcp/internal/config"
	"github.com/richard-senior/mcp/internal/logger"
	"github.com/richard-senior/mcp/pkg/auth"
	"github.com/richard-senior/mcp/pkg/transport"
)

func getHTTPClient() (*http.Client, error) {
	return transport.GetCustomHTTPClient()
}

// buildValidator stands up the JWKS cache and JWT validator for an
// OAuth-protected HTTP transport. Returns nil, nil, nil when OAuth isn't
// configured, so callers can skip mounting the auth middleware entirely.
func buildValidator(cfg config.Config) (auth.TokenValidator, *auth.JWKSCache, error) {
	if !cfg.OAuthEnabled() {
		return nil, nil, nil
	}

	httpClient, err := getHTTPClient()
	if err != nil {
		return nil, nil, err
	}

	dbPath := filepath.Join(os.TempDir(), "mcp-jwks-cache.db")
	jwks, err := auth.NewJWKSCache(httpClient, dbPath)
	if err != nil {
		return nil, nil, err
	}

	validator := auth.NewJWTValidator(auth.JWTValidatorOptions{
		ExpectedIssuer:          cfg.OAuthIssuer,
		ExpectedAudience:        cfg.OAuthAudience,
		ExpectedAuthorizedParty: cfg.OAuthAZP,
	}, jwks)

	return validator, jwks, nil
}

// requireBearerToken wraps next so every request must carry a bearer token
// validator.Validate accepts; on failure it answers 401 with a
// WWW-Authenticate challenge pointing at the protected resource metadata
// endpoint.
func requireBearerToken(validator auth.TokenValidator, disc *auth.Discovery, resourceMetadataURL string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(authz, "Bearer ")
		if !ok || token == "" {
			w.Header().Set("WWW-Authenticate", disc.WWWAuthenticateHeader(resourceMetadataURL))
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		if _, verr := validator.Validate(r.Context(), token); verr != nil {
			logger.Debug("mcpserver: bearer token rejected", verr)
			w.Header().Set("WWW-Authenticate", disc.WWWAuthenticateHeader(resourceMetadataURL))
			http.Error(w, "invalid bearer token: "+verr.Error(), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// newDiscovery builds the OAuth metadata served from the well-known
// endpoints, scoped to this server's own base URL as the protected resource.
func newDiscovery(cfg config.Config, baseURL string) *auth.Discovery {
	return &auth.Discovery{
		Metadata: auth.ServerMetadata{
			Issuer:                cfg.OAuthIssuer,
			AuthorizationEndpoint: cfg.OAuthIssuer + "/authorize",
			TokenEndpoint:         cfg.OAuthIssuer + "/token",
			JWKSURI:               cfg.OAuthIssuer + "/.well-known/jwks.json",
			RegistrationEndpoint:  baseURL + "/register",
			GrantTypesSupported:   []string{"authorization_code", "client_credentials"},
		},
		Resource: auth.ResourceMetadata{
			Resource:             baseURL,
			AuthorizationServers: []string{cfg.OAuthIssuer},
		},
		RegistrationEnabled: true,
	}
}
