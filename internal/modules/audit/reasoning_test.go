package audit

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleContext() ReasoningContext {
	return ReasoningContext{
		OpportunityID: "opp-42",
		Topic:         "AI Regulation",
		ProjectedROI:  42.5,
		Confidence:    0.85,
		Justification: "High-ROI trend with low market risk",
		AgentID:       "agent-1",
	}
}

func TestHashIsDeterministic(t *testing.T) {
	ctx := sampleContext()

	first := ctx.Hash()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ctx.Hash())
	}
}

func TestHashIsHexSHA256(t *testing.T) {
	h := sampleContext().Hash()

	assert.Len(t, h, 64)
	_, err := hex.DecodeString(h)
	assert.NoError(t, err)
}

func TestHashChangesWithAnyField(t *testing.T) {
	base := sampleContext().Hash()

	edited := sampleContext()
	edited.Justification = "High-ROI trend with low market risk!"
	assert.NotEqual(t, base, edited.Hash())

	edited = sampleContext()
	edited.Confidence = 0.86
	assert.NotEqual(t, base, edited.Hash())

	edited = sampleContext()
	edited.AgentID = "agent-2"
	assert.NotEqual(t, base, edited.Hash())
}

func TestVerifyDetectsTampering(t *testing.T) {
	ctx := sampleContext()
	stored := ctx.Hash()

	assert.True(t, ctx.Verify(stored))

	ctx.Justification = "rewritten after the fact"
	assert.False(t, ctx.Verify(stored))
}

func TestCanonicalFormSortsKeys(t *testing.T) {
	doc := canonicalize(map[string]any{
		"zebra": 1,
		"alpha": "x",
		"mid":   true,
	})
	assert.Equal(t, `{"alpha":"x","mid":true,"zebra":1}`, doc)
}

func TestSignerRoundTrip(t *testing.T) {
	signer, err := NewSigner("deployment-key")
	require.NoError(t, err)

	hash := sampleContext().Hash()
	sig := signer.Sign(hash)

	assert.Len(t, sig, 64)
	assert.True(t, signer.VerifySignature(hash, sig))
	assert.False(t, signer.VerifySignature(hash, sig[1:]+"0"))

	other, err := NewSigner("different-key")
	require.NoError(t, err)
	assert.False(t, other.VerifySignature(hash, sig))
}

func TestSignerRejectsEmptyKey(t *testing.T) {
	_, err := NewSigner("")
	assert.Error(t, err)
}
