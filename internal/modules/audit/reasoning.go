// Package audit links every executed transaction to a tamper-evident
// justification: a reasoning hash over the decision context plus an
// approval signature, exportable for independent re-verification.
package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ReasoningContext captures why a spend was approved. Hashing it at
// approval time makes the justification tamper-evident: any later edit to
// the stored text no longer matches the recorded hash.
type ReasoningContext struct {
	OpportunityID string  `json:"opportunity_id,omitempty"`
	Topic         string  `json:"topic,omitempty"`
	ProjectedROI  float64 `json:"projected_roi"`
	Confidence    float64 `json:"confidence"`
	Justification string  `json:"justification"`
	AgentID       string  `json:"agent_id"`
}

// Hash returns the hex SHA-256 digest of the canonical serialization:
// every field rendered as JSON with keys in sorted order, so the same
// context always produces the same digest regardless of field order in
// the caller's code.
func (c ReasoningContext) Hash() string {
	canonical := canonicalize(map[string]any{
		"opportunity_id": c.OpportunityID,
		"topic":          c.Topic,
		"projected_roi":  c.ProjectedROI,
		"confidence":     c.Confidence,
		"justification":  c.Justification,
		"agent_id":       c.AgentID,
	})
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether a stored hash still matches this context
func (c ReasoningContext) Verify(storedHash string) bool {
	return hmac.Equal([]byte(c.Hash()), []byte(storedHash))
}

// canonicalize renders a flat map as JSON with keys in ascending order.
// json.Marshal already sorts map keys, but building the document by hand
// keeps the canonical form independent of encoder internals.
func canonicalize(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(fields[k])
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.String()
}

// Signer produces approval signatures over reasoning hashes using a shared
// deployment key. HMAC-SHA256: the signature proves the approval came from
// a holder of the key, without a PKI.
type Signer struct {
	key []byte
}

// NewSigner creates a signer from the deployment approval key
func NewSigner(key string) (*Signer, error) {
	if key == "" {
		return nil, fmt.Errorf("approval key must not be empty")
	}
	return &Signer{key: []byte(key)}, nil
}

// Sign returns the hex HMAC-SHA256 of a reasoning hash
func (s *Signer) Sign(reasoningHash string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(reasoningHash))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature in constant time
func (s *Signer) VerifySignature(reasoningHash, signature string) bool {
	return hmac.Equal([]byte(s.Sign(reasoningHash)), []byte(signature))
}
