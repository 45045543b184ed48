package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// AudienceKind discriminates the single|multiple tagged union that a JWT's
// "aud" claim can be.
type AudienceKind int

const (
	AudienceSingle AudienceKind = iota
	AudienceMultiple
)

// Audience wraps the `aud` claim, which RFC 7519 permits as either a bare
// string or an array of strings.
type Audience struct {
	kind   AudienceKind
	single string
	multi  []string
}

func (a Audience) Contains(s string) bool {
	switch a.kind {
	case AudienceSingle:
		return a.single == s
	case AudienceMultiple:
		for _, v := range a.multi {
			if v == s {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (a Audience) Values() []string {
	if a.kind == AudienceSingle {
		if a.single == "" {
			return nil
		}
		return []string{a.single}
	}
	return a.multi
}

func (a *Audience) UnmarshalJSON(data []byte) error {
	return a.unmarshal(data)
}

func (a *Audience) unmarshal(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*a = Audience{}
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var multi []string
		if err := json.Unmarshal(data, &multi); err != nil {
			return err
		}
		*a = Audience{kind: AudienceMultiple, multi: multi}
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*a = Audience{kind: AudienceSingle, single: single}
	return nil
}

// Header is the decoded JOSE header of a JWT.
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ,omitempty"`
	Kid string `json:"kid,omitempty"`
}

// Payload is the decoded claim set of a JWT, covering every claim the
// validator inspects plus a few common extras carried through untouched.
type Payload struct {
	Issuer           string   `json:"iss,omitempty"`
	Subject          string   `json:"sub,omitempty"`
	Audience         Audience `json:"aud,omitempty"`
	Expiry           *int64   `json:"exp,omitempty"`
	NotBefore        *int64   `json:"nbf,omitempty"`
	IssuedAt         *int64   `json:"iat,omitempty"`
	Scope            string   `json:"scope,omitempty"`
	AuthorizedParty  string   `json:"azp,omitempty"`
	ClientID         string   `json:"clientId,omitempty"`
}

func (p *Payload) UnmarshalJSON(data []byte) error {
	type alias Payload
	var raw struct {
		alias
		Aud json.RawMessage `json:"aud,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Payload(raw.alias)
	if len(raw.Aud) > 0 {
		if err := p.Audience.unmarshal(raw.Aud); err != nil {
			return err
		}
	}
	return nil
}

// RawToken is a JWT split into its three base64url segments, still
// undecoded and unverified.
type RawToken struct {
	HeaderSegment    string
	PayloadSegment   string
	SignatureSegment string
}

// SigningInput is the exact byte sequence the signature covers:
// base64url(header) + "." + base64url(payload).
func (t RawToken) SigningInput() string {
	return t.HeaderSegment + "." + t.PayloadSegment
}

// ParseRawToken splits a compact-serialization JWT into its segments.
// A 5-segment token (JWE) is rejected explicitly rather than silently
// mis-parsed as a malformed JWS.
func ParseRawToken(token string) (RawToken, *ValidationError) {
	parts := strings.Split(token, ".")
	switch len(parts) {
	case 5:
		return RawToken{}, newValidationError(ErrJWENotSupported, "encrypted tokens (JWE) are not supported")
	case 3:
		return RawToken{parts[0], parts[1], parts[2]}, nil
	default:
		return RawToken{}, newValidationError(ErrMalformedToken, "token must have exactly 3 base64url segments")
	}
}

func decodeSegment(seg string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(seg)
}

// DecodeHeader base64url-decodes and JSON-unmarshals the header segment.
func (t RawToken) DecodeHeader() (Header, error) {
	var h Header
	raw, err := decodeSegment(t.HeaderSegment)
	if err != nil {
		return h, err
	}
	err = json.Unmarshal(raw, &h)
	return h, err
}

// DecodePayload base64url-decodes and JSON-unmarshals the payload segment.
func (t RawToken) DecodePayload() (Payload, error) {
	var p Payload
	raw, err := decodeSegment(t.PayloadSegment)
	if err != nil {
		return p, err
	}
	err = json.Unmarshal(raw, &p)
	return p, err
}

// DecodeSignature base64url-decodes the signature segment.
func (t RawToken) DecodeSignature() ([]byte, error) {
	return decodeSegment(t.SignatureSegment)
}
