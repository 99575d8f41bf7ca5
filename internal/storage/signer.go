package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Signature verification failures reported by URLSigner.Verify.
var (
	ErrSignatureInvalid = errors.New("storage: signature mismatch")
	ErrSignatureExpired = errors.New("storage: signed url expired")
)

// URLSigner mints and verifies the signed URLs served by the daemon's
// /files endpoints for the local backend. The signature binds method, key,
// and expiry to the shared secret, so a download link cannot be replayed as
// an upload or retargeted at another object.
type URLSigner struct {
	secret  []byte
	baseURL string
}

// NewURLSigner returns a signer bound to secret. baseURL is the externally
// reachable daemon address, without a trailing slash.
func NewURLSigner(secret, baseURL string) *URLSigner {
	return &URLSigner{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// SignedURL returns a complete URL granting method on key until ttl elapses.
func (s *URLSigner) SignedURL(method, key string, ttl time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", errors.New("storage: signed url ttl must be positive")
	}
	expires := time.Now().Add(ttl).Unix()
	sig := s.sign(method, key, expires)

	escaped := make([]string, 0, 4)
	for _, segment := range strings.Split(key, "/") {
		escaped = append(escaped, url.PathEscape(segment))
	}
	return fmt.Sprintf("%s/files/%s?exp=%d&sig=%s", s.baseURL, strings.Join(escaped, "/"), expires, sig), nil
}

// Verify checks the exp and sig query parameters for a request using method
// on key. It returns ErrSignatureExpired once the expiry passes and
// ErrSignatureInvalid for any mismatch.
func (s *URLSigner) Verify(method, key, expValue, sigValue string, now time.Time) error {
	expires, err := strconv.ParseInt(expValue, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}
	expected := s.sign(method, key, expires)
	if !hmac.Equal([]byte(expected), []byte(sigValue)) {
		return ErrSignatureInvalid
	}
	if now.Unix() > expires {
		return ErrSignatureExpired
	}
	return nil
}

func (s *URLSigner) sign(method, key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%s\n%d", strings.ToUpper(method), key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
