package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignAndVerify(t *testing.T) {
	signer := NewResultSigner("shared-secret")
	started := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	sig := signer.Sign("batch-1", started, 100, 92, 8)
	assert.NotEmpty(t, sig)
	assert.True(t, signer.Verify("batch-1", started, 100, 92, 8, sig))
}

func TestSignIsDeterministic(t *testing.T) {
	signer := NewResultSigner("shared-secret")
	started := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	assert.Equal(t,
		signer.Sign("batch-1", started, 100, 92, 8),
		signer.Sign("batch-1", started, 100, 92, 8))
}

func TestVerifyRejectsTampering(t *testing.T) {
	signer := NewResultSigner("shared-secret")
	started := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	sig := signer.Sign("batch-1", started, 100, 92, 8)

	assert.False(t, signer.Verify("batch-1", started, 100, 93, 7, sig), "altered counts")
	assert.False(t, signer.Verify("batch-2", started, 100, 92, 8, sig), "altered batch id")
	assert.False(t, signer.Verify("batch-1", started.Add(time.Second), 100, 92, 8, sig), "altered start time")
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	started := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	sig := NewResultSigner("secret-a").Sign("batch-1", started, 100, 92, 8)
	assert.False(t, NewResultSigner("secret-b").Verify("batch-1", started, 100, 92, 8, sig))
}
