package pkce

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	p := Generate()

	assert.Equal(t, MethodS256, p.Method)
	assert.GreaterOrEqual(t, len(p.Verifier), 43)
	assert.True(t, ValidVerifier(p.Verifier))
	assert.NotContains(t, p.Challenge, "=")
	assert.True(t, Verify(p.Verifier, p.Challenge))

	other := Generate()
	assert.NotEqual(t, p.Verifier, other.Verifier)
	assert.NotEqual(t, p.Challenge, other.Challenge)
}

func TestFromVerifierKnownVector(t *testing.T) {
	// RFC 7636 appendix B
	p := FromVerifier("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", p.Challenge)
}

func TestVerifyRejectsWrongVerifier(t *testing.T) {
	p := Generate()
	assert.False(t, Verify(p.Verifier+"x", p.Challenge))
	assert.False(t, Verify(p.Verifier, ""))
}

func TestValidVerifier(t *testing.T) {
	assert.False(t, ValidVerifier("short"))
	assert.False(t, ValidVerifier(strings.Repeat("a", 129)))
	assert.False(t, ValidVerifier(strings.Repeat("a", 42)+"/"))
	assert.True(t, ValidVerifier(strings.Repeat("a", 42)+"~"))
}
