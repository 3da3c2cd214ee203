package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOf_Deterministic(t *testing.T) {
	t.Parallel()

	a := Of("https://t.me/+AbCdEfGh123")
	b := Of("https://t.me/+AbCdEfGh123")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64, "hex-encoded SHA-256 is 64 chars")
}

func TestOf_DistinctLinks(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, Of("https://t.me/+one"), Of("https://t.me/+two"))
}

func TestOf_DoesNotLeakLink(t *testing.T) {
	t.Parallel()

	link := "https://t.me/+SecretInvite"
	assert.NotContains(t, Of(link), "Secret")
}
