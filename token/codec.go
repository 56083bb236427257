// Package token issues and verifies the signed, time-boxed capability tokens
// that gate playback. Tokens are never persisted; their lifetime is bounded
// entirely by the embedded expiry.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	caterrs "github.com/streamplace/vod-api/errors"
)

// PurposeStream is the discriminant embedded in every playback token. Tokens
// carrying any other purpose are rejected even if otherwise well-formed.
const PurposeStream = "stream"

// StreamClaims are the decoded contents of a capability token. The nonce only
// prevents two issued tokens from being byte-identical; replay of a verified
// token within its lifetime is not prevented.
type StreamClaims struct {
	VideoID        string   `json:"videoId"`
	AllowedOrigins []string `json:"allowedOrigins"`
	Purpose        string   `json:"type"`
	Nonce          string   `json:"nonce"`
	jwt.RegisteredClaims
}

type Codec struct {
	secret     []byte
	defaultTTL time.Duration
	now        func() time.Time
}

func NewCodec(secret string, defaultTTL time.Duration) *Codec {
	return &Codec{
		secret:     []byte(secret),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Issue creates a token for videoID expiring after ttl (the process default
// applies when ttl is zero). allowedOrigins is embedded verbatim, with no
// normalization; empty means unrestricted. Returns the encoded token and its
// absolute expiry.
func (c *Codec) Issue(videoID string, ttl time.Duration, allowedOrigins []string) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()
	expiresAt := now.Add(ttl)

	claims := StreamClaims{
		VideoID:        videoID,
		AllowedOrigins: allowedOrigins,
		Purpose:        PurposeStream,
		Nonce:          uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify decodes tokenText and checks signature, expiry and the "stream"
// discriminant. It fails closed: every failure mode yields the same generic
// InvalidTokenError so untrusted callers learn nothing about which check
// tripped.
func (c *Codec) Verify(tokenText string) (*StreamClaims, error) {
	claims := &StreamClaims{}
	// The parser's own claims validation runs against the wall clock, so it
	// is disabled and expiry is checked against the codec clock instead.
	_, err := jwt.ParseWithClaims(tokenText, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, caterrs.InvalidTokenError
	}
	if claims.Purpose != PurposeStream {
		return nil, caterrs.InvalidTokenError
	}
	if claims.ExpiresAt == nil || !c.now().Before(claims.ExpiresAt.Time) {
		return nil, caterrs.InvalidTokenError
	}
	return claims, nil
}
