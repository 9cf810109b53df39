package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var cheap = Params{Time: 1, Memory: 1024, Threads: 1}

func TestHashAndVerify(t *testing.T) {
	h := NewHasherWithParams(cheap)

	encoded, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))

	assert.True(t, h.Verify("correct horse battery staple", encoded))
	assert.False(t, h.Verify("correct horse battery stapl", encoded))
	assert.False(t, h.Verify("", encoded))
}

func TestHash_Salted(t *testing.T) {
	h := NewHasherWithParams(cheap)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("same", a))
	assert.True(t, h.Verify("same", b))
}

func TestHash_Empty(t *testing.T) {
	h := NewHasherWithParams(cheap)

	_, err := h.Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestVerify_Malformed(t *testing.T) {
	h := NewHasherWithParams(cheap)

	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=1024,t=1,p=1$onlyfive",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA",
	} {
		assert.False(t, h.Verify("anything", encoded), encoded)
	}
}

func TestVerify_LegacyBcrypt(t *testing.T) {
	h := NewHasherWithParams(cheap)

	legacy, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, h.Verify("old-password", string(legacy)))
	assert.False(t, h.Verify("new-password", string(legacy)))
	assert.True(t, h.NeedsRehash(string(legacy)))
}

func TestNeedsRehash(t *testing.T) {
	h := NewHasherWithParams(cheap)

	current, err := h.Hash("pw")
	require.NoError(t, err)
	assert.False(t, h.NeedsRehash(current))

	stronger := NewHasherWithParams(Params{Time: 2, Memory: 1024, Threads: 1})
	assert.True(t, stronger.NeedsRehash(current))
	assert.True(t, h.NeedsRehash("garbage"))
}

func TestVerifyDummy(t *testing.T) {
	h := NewHasherWithParams(cheap)
	assert.NotPanics(t, func() { h.VerifyDummy("whatever") })
}
