package auth

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"time"
)

// TokenValidator is the minimal interface the HTTP transport needs to gate
// requests on a bearer token.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*Payload, *ValidationError)
}

// JWTValidatorOptions configures the checks the protocol makes optional:
// issuer/audience/azp comparisons only run when the corresponding field is
// non-empty.
type JWTValidatorOptions struct {
	ExpectedIssuer          string
	ExpectedAudience        string
	ExpectedAuthorizedParty string
	AllowedClockSkew        time.Duration
}

// JWTValidator implements TokenValidator: segment parsing, header/alg
// checks, claim checks, JWKS fetch, and manual RSA PKCS#1 v1.5 signature
// verification.
type JWTValidator struct {
	opts JWTValidatorOptions
	jwks *JWKSCache
}

func NewJWTValidator(opts JWTValidatorOptions, jwks *JWKSCache) *JWTValidator {
	if opts.AllowedClockSkew == 0 {
		opts.AllowedClockSkew = 60 * time.Second
	}
	return &JWTValidator{opts: opts, jwks: jwks}
}

func (v *JWTValidator) Validate(ctx context.Context, token string) (*Payload, *ValidationError) {
	// Segment parsing, then alg/kid checks.
	raw, verr := ParseRawToken(token)
	if verr != nil {
		return nil, verr
	}

	header, err := raw.DecodeHeader()
	if err != nil {
		return nil, newValidationError(ErrMalformedToken, "invalid header: "+err.Error())
	}
	if header.Alg != "RS256" {
		return nil, newValidationError(ErrUnsupportedAlgorithm, "alg must be RS256, got "+header.Alg)
	}
	if header.Kid == "" {
		return nil, newValidationError(ErrMissingKid, "header is missing kid")
	}

	// Payload parsing, including the aud tagged union.
	payload, err := raw.DecodePayload()
	if err != nil {
		return nil, newValidationError(ErrMalformedToken, "invalid payload: "+err.Error())
	}

	if v.opts.ExpectedIssuer != "" && payload.Issuer != v.opts.ExpectedIssuer {
		return nil, newValidationError(ErrInvalidIssuer, "unexpected issuer "+payload.Issuer)
	}

	if v.opts.ExpectedAudience != "" && !payload.Audience.Contains(v.opts.ExpectedAudience) {
		return nil, newValidationError(ErrInvalidAudience, "expected audience not present")
	}

	if v.opts.ExpectedAuthorizedParty != "" && payload.AuthorizedParty != v.opts.ExpectedAuthorizedParty {
		return nil, newValidationError(ErrInvalidAuthorizedParty, "azp does not match expected authorized party")
	}

	// exp/nbf with clock skew. exp is mandatory.
	if payload.Expiry == nil {
		return nil, newValidationError(ErrTokenExpired, "token has no exp claim")
	}
	now := time.Now()
	expiry := time.Unix(*payload.Expiry, 0)
	if now.After(expiry.Add(v.opts.AllowedClockSkew)) {
		return nil, newValidationError(ErrTokenExpired, "token expired at "+expiry.String())
	}
	if payload.NotBefore != nil {
		nbf := time.Unix(*payload.NotBefore, 0)
		if now.Before(nbf.Add(-v.opts.AllowedClockSkew)) {
			return nil, newValidationError(ErrTokenNotYetValid, "token not valid until "+nbf.String())
		}
	}

	// Fetch the issuer's JWKS and locate the signing key.
	if v.jwks == nil {
		return nil, newValidationError(ErrKeyNotFound, "no jwks cache configured")
	}
	issuer := payload.Issuer
	if issuer == "" {
		issuer = v.opts.ExpectedIssuer
	}
	keys, err := v.jwks.Keys(issuer)
	if err != nil {
		return nil, newValidationError(ErrKeyNotFound, "fetching jwks: "+err.Error())
	}
	pub, ok := keys[header.Kid]
	if !ok {
		return nil, newValidationError(ErrKeyNotFound, "no key with kid "+header.Kid)
	}

	// Manual PKCS#1 v1.5 SHA-256 signature verification over
	// base64url(header) + "." + base64url(payload).
	sig, err := raw.DecodeSignature()
	if err != nil {
		return nil, newValidationError(ErrMalformedToken, "invalid signature encoding: "+err.Error())
	}
	if err := verifyRS256(pub, raw.SigningInput(), sig); err != nil {
		return nil, newValidationError(ErrInvalidSignature, err.Error())
	}

	return &payload, nil
}

func verifyRS256(pub *rsa.PublicKey, signingInput string, sig []byte) error {
	digest := sha256.Sum256([]byte(signingInput))
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig)
}
