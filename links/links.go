// Package links issues and verifies signed, expiring download links.
package links

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"fileflow/models"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

const issuer = "fileflow"

var (
	ErrInvalidToken     = errors.New("invalid token format")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrWrongFile        = errors.New("token is for another file")
)

// Signer builds download URLs. With no secret, URLs are unsigned and Verify
// accepts any request.
type Signer struct {
	secret    []byte
	ttl       time.Duration
	baseURL   string
	clockSkew time.Duration
	now       func() time.Time
}

// NewSigner returns a signer. HS256 needs a secret of at least 32 bytes.
func NewSigner(secret string, ttl time.Duration, baseURL string) (*Signer, error) {
	if secret != "" && len(secret) < 32 {
		return nil, fmt.Errorf("link secret must be at least 32 bytes, got %d", len(secret))
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	s := &Signer{ttl: ttl, baseURL: baseURL, clockSkew: 30 * time.Second, now: time.Now}
	if secret != "" {
		s.secret = []byte(secret)
	}
	return s, nil
}

// Enabled reports whether links carry tokens.
func (s *Signer) Enabled() bool {
	return s.secret != nil
}

// Sign returns a token granting download of file for the configured TTL.
func (s *Signer) Sign(file models.FileID, job models.JobID) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: s.secret}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}
	now := s.now()
	claims := models.DownloadClaims{
		Issuer:    issuer,
		Subject:   string(file),
		JobID:     string(job),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}
	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to create JWT: %w", err)
	}
	return token, nil
}

// URL returns the download URL of file, signed when a secret is configured.
func (s *Signer) URL(file models.FileID, job models.JobID) (string, error) {
	u := s.baseURL + "/api/download/" + url.PathEscape(string(file))
	token, err := s.Sign(file, job)
	if err != nil || token == "" {
		return u, err
	}
	return u + "?token=" + url.QueryEscape(token), nil
}

// Verify checks that token grants download of file.
func (s *Signer) Verify(token string, file models.FileID) (*models.DownloadClaims, error) {
	if !s.Enabled() {
		return nil, nil
	}
	if token == "" {
		return nil, ErrInvalidToken
	}
	tok, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims := &models.DownloadClaims{}
	if err := tok.Claims(s.secret, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	now := s.now().Unix()
	skew := int64(s.clockSkew.Seconds())
	if claims.ExpiresAt > 0 && claims.ExpiresAt < now-skew {
		return nil, ErrTokenExpired
	}
	if claims.IssuedAt > now+skew {
		return nil, ErrTokenNotYetValid
	}
	if claims.Subject != string(file) {
		return nil, ErrWrongFile
	}
	return claims, nil
}
