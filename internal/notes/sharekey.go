package notes

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	shareKeyLength   = 8
	shareKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// ErrInvalidShareKey indicates input that is not an 8-character [A-Z0-9] code.
var ErrInvalidShareKey = errors.New("notes: invalid share key")

// ShareKey is a short human-relayable code granting collaborator access to a
// note. Keys are stable for the note's lifetime once generated. Global
// uniqueness is by convention only: the 36^8 space is not collision-checked,
// which is acceptable for human-shared, low-volume keys.
type ShareKey string

// ParseShareKey validates raw input and returns a ShareKey.
func ParseShareKey(rawInput string) (ShareKey, error) {
	trimmed := strings.TrimSpace(rawInput)
	if len(trimmed) != shareKeyLength {
		return "", fmt.Errorf("%w: must be %d characters", ErrInvalidShareKey, shareKeyLength)
	}
	for _, r := range trimmed {
		if !strings.ContainsRune(shareKeyAlphabet, r) {
			return "", fmt.Errorf("%w: %q", ErrInvalidShareKey, rawInput)
		}
	}
	return ShareKey(trimmed), nil
}

// String returns the underlying code.
func (k ShareKey) String() string {
	return string(k)
}

// LooksLikeShareKey reports whether rawInput matches the share-key shape.
// The create dialog uses this to route its single text field between
// "create a note with this title" and "join the note behind this key".
func LooksLikeShareKey(rawInput string) bool {
	_, err := ParseShareKey(rawInput)
	return err == nil
}

// GenerateShareKey draws an 8-character code uniformly from [A-Z0-9].
func GenerateShareKey() (ShareKey, error) {
	alphabetSize := big.NewInt(int64(len(shareKeyAlphabet)))
	var builder strings.Builder
	for i := 0; i < shareKeyLength; i++ {
		index, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("notes: share key generation: %w", err)
		}
		builder.WriteByte(shareKeyAlphabet[index.Int64()])
	}
	return ShareKey(builder.String()), nil
}
