// Package password hashes and verifies user passwords.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var ErrEmptyPassword = errors.New("password must not be empty")

// Argon2id parameters - tuned for security vs performance balance
// Time: 3, Memory: 64MB, Threads: 4, KeyLen: 32 bytes
const (
	DefaultTime    = 3
	DefaultMemory  = 64 * 1024 // 64 MB
	DefaultThreads = 4
	keyLen         = 32
	saltLen        = 16
)

// Params controls the argon2id cost
type Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// DefaultParams are used by NewHasher
var DefaultParams = Params{Time: DefaultTime, Memory: DefaultMemory, Threads: DefaultThreads}

// Hasher produces and checks salted argon2id hashes in PHC string format.
// Hashes written by the previous deployment ($2a$, $2b$, $2y$ bcrypt) still verify.
type Hasher struct {
	params Params
	// dummy is verified against when the account does not exist
	dummy string
}

func NewHasher() *Hasher {
	return NewHasherWithParams(DefaultParams)
}

// NewHasherWithParams is used by tests to keep argon2 cheap
func NewHasherWithParams(p Params) *Hasher {
	h := &Hasher{params: p}
	dummy, err := h.Hash("dummy-password-for-timing")
	if err != nil {
		panic(fmt.Sprintf("password: failed to build dummy hash: %v", err))
	}
	h.dummy = dummy
	return h
}

// Hash creates an argon2id hash of the password:
// $argon2id$v=19$m=65536,t=3,p=4$salt$hash
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(plaintext), salt, h.params.Time, h.params.Memory, h.params.Threads, keyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify checks if a password matches the stored hash.
// Malformed hashes never match.
func (h *Hasher) Verify(plaintext, encoded string) bool {
	if isBcrypt(encoded) {
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plaintext)) == nil
	}
	return verifyArgon2(plaintext, encoded)
}

// VerifyDummy burns the same time as a real verification.
// Login calls it for unknown emails so response time does not reveal registration.
func (h *Hasher) VerifyDummy(plaintext string) {
	_ = verifyArgon2(plaintext, h.dummy)
}

// NeedsRehash reports whether encoded was produced by a legacy scheme or
// with weaker parameters than the hasher's current ones.
func (h *Hasher) NeedsRehash(encoded string) bool {
	if isBcrypt(encoded) {
		return true
	}
	p, _, _, err := decodeArgon2(encoded)
	if err != nil {
		return true
	}
	return p != h.params
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

func verifyArgon2(plaintext, encoded string) bool {
	p, salt, want, err := decodeArgon2(encoded)
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(plaintext), salt, p.Time, p.Memory, p.Threads, uint32(len(want)))

	return subtle.ConstantTimeCompare(want, got) == 1
}

func decodeArgon2(encoded string) (Params, []byte, []byte, error) {
	var p Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, errors.New("not an argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, err
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, err
	}
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		return p, nil, nil, errors.New("invalid argon2 parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, err
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, err
	}
	if len(hash) == 0 {
		return p, nil, nil, errors.New("empty argon2 hash")
	}

	return p, salt, hash, nil
}
