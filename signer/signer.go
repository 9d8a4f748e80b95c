package signer

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"hash"
	"strings"
)

type Signer struct {
	hash func() hash.Hash
}

// Default Hash is SHA1
func New(hash func() hash.Hash) *Signer {
	if hash == nil {
		hash = sha1.New
	}
	return &Signer{hash: hash}
}

// Canonical returns the string covered by a request signature:
// METHOD\nhost\npath\nbody, with one trailing slash removed from path.
func Canonical(method, host, path, body string) string {
	path = strings.TrimSuffix(path, "/")
	return strings.Join([]string{
		strings.ToUpper(method),
		strings.ToLower(host),
		path,
		body,
	}, "\n")
}

// Sign returns the hex encoded HMAC of the canonical request under secret.
func (s *Signer) Sign(method, host, path, body, secret string) string {
	mac := hmac.New(s.hash, []byte(secret))
	mac.Write([]byte(Canonical(method, host, path, body)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Hash returns the hex encoded digest of value.
func (s *Signer) Hash(value string) string {
	h := s.hash()
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}
