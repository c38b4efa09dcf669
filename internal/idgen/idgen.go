// Package idgen generates short, URL-safe identifiers for drag transactions
// and client sessions.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes mark what kind of object an ID names.
const (
	TransactionPrefix = "tx-"
	SessionPrefix     = "sess-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Func produces a new identifier. Components take one so tests can supply
// deterministic IDs.
type Func func() (string, error)

// Transaction returns a new drag transaction ID.
func Transaction() (string, error) {
	return GenerateWithPrefix(TransactionPrefix)
}

// Session returns a new client session ID.
func Session() (string, error) {
	return GenerateWithPrefix(SessionPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// Sequence returns a Func yielding prefix1, prefix2, ... for tests.
func Sequence(prefix string) Func {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("%s%d", prefix, n), nil
	}
}
