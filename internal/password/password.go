// Package password implements the Argon2id credential hashing used for
// password-flow signups. Hashes use the standard PHC string format so the
// cost parameters can be raised later without invalidating stored hashes.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

// Hash returns the encoded Argon2id hash for a raw password.
func Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks whether a password matches the encoded Argon2id hash.
func Verify(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return false
	}

	memory, timeCost, threads, ok := parseParams(parts[3])
	if !ok {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	actual := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

// parseParams decodes the "m=65536,t=1,p=4" segment of a PHC hash string.
func parseParams(seg string) (memory, timeCost uint32, threads uint8, ok bool) {
	fields := strings.Split(seg, ",")
	if len(fields) != 3 {
		return 0, 0, 0, false
	}

	read := func(field, prefix string, bits int) (uint64, bool) {
		raw, found := strings.CutPrefix(field, prefix)
		if !found {
			return 0, false
		}
		v, err := strconv.ParseUint(raw, 10, bits)
		return v, err == nil
	}

	m, ok1 := read(fields[0], "m=", 32)
	t, ok2 := read(fields[1], "t=", 32)
	p, ok3 := read(fields[2], "p=", 8)
	if !ok1 || !ok2 || !ok3 {
		return 0, 0, 0, false
	}
	return uint32(m), uint32(t), uint8(p), true
}
