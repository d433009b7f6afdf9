package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheap parameters keep the suite fast
var testParams = Params{Time: 1, MemoryKiB: 1024, Threads: 1}

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(testParams)

	for _, pw := range []string{"password1", "correct horse battery staple", "ünïcödé-πass", " "} {
		hash, err := h.Hash(pw)
		require.NoError(t, err)
		assert.True(t, h.Verify(pw, hash), "password %q should verify", pw)
		assert.NotContains(t, hash, pw)
	}
}

func TestHasher_SaltedOutputsDiffer(t *testing.T) {
	h := NewHasher(testParams)

	first, err := h.Hash("samepassword")
	require.NoError(t, err)
	second, err := h.Hash("samepassword")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, h.Verify("samepassword", first))
	assert.True(t, h.Verify("samepassword", second))
}

func TestHasher_WrongPassword(t *testing.T) {
	h := NewHasher(testParams)

	hash, err := h.Hash("password-one")
	require.NoError(t, err)

	assert.False(t, h.Verify("password-two", hash))
	assert.False(t, h.Verify("", hash))
}

func TestHasher_EncodedFormat(t *testing.T) {
	h := NewHasher(testParams)

	hash, err := h.Hash("password1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"), hash)
	assert.Len(t, strings.Split(hash, "$"), 6)
}

func TestHasher_VerifyUsesParamsFromHash(t *testing.T) {
	hash, err := NewHasher(testParams).Hash("password1")
	require.NoError(t, err)

	other := NewHasher(Params{Time: 2, MemoryKiB: 2048, Threads: 2})
	assert.True(t, other.Verify("password1", hash))
}

func TestHasher_MalformedHashes(t *testing.T) {
	h := NewHasher(testParams)
	valid, err := h.Hash("password1")
	require.NoError(t, err)
	parts := strings.Split(valid, "$")

	tests := map[string]string{
		"empty":         "",
		"garbage":       "not-a-hash",
		"bcrypt":        "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
		"argon2i":       "$argon2i$" + strings.Join(parts[2:], "$"),
		"wrong version": "$argon2id$v=16$" + strings.Join(parts[3:], "$"),
		"zero time":     "$argon2id$v=19$m=1024,t=0,p=1$" + parts[4] + "$" + parts[5],
		"zero threads":  "$argon2id$v=19$m=1024,t=1,p=0$" + parts[4] + "$" + parts[5],
		"bad params":    "$argon2id$v=19$m=x,t=1,p=1$" + parts[4] + "$" + parts[5],
		"bad salt":      "$argon2id$v=19$m=1024,t=1,p=1$!!!$" + parts[5],
		"empty key":     "$argon2id$v=19$m=1024,t=1,p=1$" + parts[4] + "$",
		"missing part":  strings.Join(parts[:5], "$"),
	}

	for name, hash := range tests {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, h.Verify("password1", hash))
			})
		})
	}
}

func TestHashPassword_Defaults(t *testing.T) {
	hash, err := HashPassword("testpass123")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=4$"))
	assert.True(t, CheckPassword("testpass123", hash))
	assert.False(t, CheckPassword("testpass124", hash))
}
