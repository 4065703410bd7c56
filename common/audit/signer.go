// Package audit provides HMAC signing of batch results so downstream
// consumers can detect tampering with run summaries.
package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ResultSigner signs and verifies batch result summaries.
type ResultSigner struct {
	secretKey []byte
}

// NewResultSigner creates a signer from a shared secret.
func NewResultSigner(secretKey string) *ResultSigner {
	return &ResultSigner{secretKey: []byte(secretKey)}
}

// Sign computes the signature over the identifying fields and counts of a
// batch result.
func (s *ResultSigner) Sign(batchID string, startedAt time.Time, input, clean, quarantined int) string {
	payload := fmt.Sprintf("%s|%s|%d|%d|%d",
		batchID, startedAt.Format(time.RFC3339Nano), input, clean, quarantined)
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks a previously issued signature.
func (s *ResultSigner) Verify(batchID string, startedAt time.Time, input, clean, quarantined int, signature string) bool {
	expected := s.Sign(batchID, startedAt, input, clean, quarantined)
	return hmac.Equal([]byte(expected), []byte(signature))
}
