// Package password hashes and verifies account passwords with Argon2id.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

// MinLength is counted in characters after trimming surrounding spaces.
const MinLength = 8

var (
	ErrTooShort      = errors.New("password too short")
	ErrMalformedHash = errors.New("malformed password hash")
)

const (
	hashScheme  = "argon2id"
	hashVersion = argon2.Version
	saltLen     = 16
	keyLen      = 32
)

type params struct {
	memory  uint32
	time    uint32
	threads uint8
}

var defaultParams = params{memory: 64 * 1024, time: 1, threads: 4}

// Validate reports whether raw is acceptable as a new password.
func Validate(raw string) error {
	if utf8.RuneCountInString(strings.TrimSpace(raw)) < MinLength {
		return ErrTooShort
	}
	return nil
}

// Hash returns the encoded Argon2id hash of raw, in the PHC string format.
func Hash(raw string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := derive(raw, salt, defaultParams, keyLen)
	return encode(defaultParams, salt, key), nil
}

// Verify reports whether raw matches encoded. Malformed hashes never match.
func Verify(raw, encoded string) bool {
	p, salt, key, err := decode(encoded)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(key, derive(raw, salt, p, uint32(len(key)))) == 1
}

func derive(raw string, salt []byte, p params, n uint32) []byte {
	return argon2.IDKey([]byte(raw), salt, p.time, p.memory, p.threads, n)
}

func encode(p params, salt, key []byte) string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		hashScheme, hashVersion, p.memory, p.time, p.threads,
		b64.EncodeToString(salt), b64.EncodeToString(key))
}

// decode splits "$argon2id$v=19$m=..,t=..,p=..$salt$key".
func decode(encoded string) (params, []byte, []byte, error) {
	var p params
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != hashScheme {
		return p, nil, nil, ErrMalformedHash
	}
	if fields[2] != fmt.Sprintf("v=%d", hashVersion) {
		return p, nil, nil, ErrMalformedHash
	}

	// The trailing verb only matches junk after the last parameter.
	var rest string
	n, _ := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d%s", &p.memory, &p.time, &p.threads, &rest)
	if n != 3 || rest != "" {
		return p, nil, nil, ErrMalformedHash
	}
	if p.memory == 0 || p.time == 0 || p.threads == 0 {
		return p, nil, nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(fields[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, ErrMalformedHash
	}
	return p, salt, key, nil
}
