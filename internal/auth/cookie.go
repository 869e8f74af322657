package auth

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gtank/cryptopasta"
)

// MinSecretLength is the shortest secret NewCookieSigner accepts.
const MinSecretLength = 32

// CookieSigner attaches an HMAC to session tokens so that forged cookies are
// rejected before the session store is consulted.
type CookieSigner struct {
	key *[32]byte
}

// NewCookieSigner builds a signer from secret. An empty secret yields a
// random key, which invalidates issued cookies whenever the process restarts.
func NewCookieSigner(secret string) (*CookieSigner, error) {
	if secret == "" {
		return &CookieSigner{key: cryptopasta.NewHMACKey()}, nil
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("cookie secret too short: want at least %d chars", MinSecretLength)
	}
	key := &[32]byte{}
	copy(key[:], cryptopasta.Hash("session cookie", []byte(secret)))
	return &CookieSigner{key: key}, nil
}

// Sign returns "<token>.<mac>".
func (s *CookieSigner) Sign(token string) string {
	mac := cryptopasta.GenerateHMAC([]byte(token), s.key)
	return token + "." + base64.RawURLEncoding.EncodeToString(mac)
}

// Verify returns the token carried by value if its signature is valid.
func (s *CookieSigner) Verify(value string) (string, bool) {
	token, sig, ok := strings.Cut(value, ".")
	if !ok || token == "" {
		return "", false
	}
	mac, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !cryptopasta.CheckHMAC([]byte(token), mac, s.key) {
		return "", false
	}
	return token, true
}
