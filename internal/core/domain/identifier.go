package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// IdentifierSize is the fixed width of a ledger identifier in bytes.
const IdentifierSize = 32

// MaxNameLength bounds a Name so that it always fits into one Identifier.
const MaxNameLength = IdentifierSize

// Identifier is the fixed-width encoding of a Name used at the ledger boundary.
// The zero value is the reserved "not found" sentinel.
type Identifier [IdentifierSize]byte

// ZeroIdentifier is the all-zero sentinel returned by the ledger for absent records.
var ZeroIdentifier Identifier

// IsZero reports whether the identifier is the reserved sentinel.
func (id Identifier) IsZero() bool {
	return id == ZeroIdentifier
}

// Hex returns the 0x-prefixed hexadecimal representation.
func (id Identifier) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

func (id Identifier) String() string {
	return id.Hex()
}

// MarshalText renders the identifier as hex so JSON payloads stay readable.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

// UnmarshalText parses a 0x-prefixed hexadecimal identifier.
func (id *Identifier) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentifier(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseIdentifier decodes a hex string (with or without 0x) of exactly 32 bytes.
func ParseIdentifier(s string) (Identifier, error) {
	var id Identifier
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if len(raw) != IdentifierSize {
		return id, fmt.Errorf("%w: identifier must be %d bytes, got %d", ErrEncoding, IdentifierSize, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

func isNameRune(r byte) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == ' ':
		return true
	}
	return false
}

// EncodeName maps each character of name to its byte value and right-pads the
// result with zero bytes. The empty name encodes to the zero sentinel.
// Names longer than MaxNameLength or outside the alphabet are rejected rather
// than truncated.
func EncodeName(name string) (Identifier, error) {
	var id Identifier
	if len(name) > MaxNameLength {
		return id, fmt.Errorf("%w: name %q exceeds %d bytes", ErrEncoding, name, MaxNameLength)
	}
	for i := 0; i < len(name); i++ {
		if !isNameRune(name[i]) {
			return id, fmt.Errorf("%w: name %q contains unsupported character %q", ErrEncoding, name, name[i])
		}
	}
	copy(id[:], name)
	return id, nil
}

// MustEncodeName is EncodeName for names already validated by ValidateName.
func MustEncodeName(name string) Identifier {
	id, err := EncodeName(name)
	if err != nil {
		panic(err)
	}
	return id
}

// DecodeIdentifier strips the zero padding and drops any byte outside the
// name alphabet. The zero sentinel decodes to the empty Name.
func DecodeIdentifier(id Identifier) string {
	end := len(id)
	for end > 0 && id[end-1] == 0 {
		end--
	}

	var b strings.Builder
	b.Grow(end)
	for i := 0; i < end; i++ {
		if isNameRune(id[i]) {
			b.WriteByte(id[i])
		}
	}
	return b.String()
}

// DecodeIdentifierStrict decodes like DecodeIdentifier but fails when the
// identifier carries bytes the lenient decoder would drop.
func DecodeIdentifierStrict(id Identifier) (string, error) {
	end := len(id)
	for end > 0 && id[end-1] == 0 {
		end--
	}
	for i := 0; i < end; i++ {
		if !isNameRune(id[i]) {
			return "", fmt.Errorf("%w: identifier %s has unsupported byte 0x%02x at %d", ErrEncoding, id.Hex(), id[i], i)
		}
	}
	return string(id[:end]), nil
}

// ValidateName enforces the presentation-layer Name rules.
func ValidateName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	if len(name) > MaxNameLength {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be at most %d characters", MaxNameLength)}
	}
	for i := 0; i < len(name); i++ {
		if !isNameRune(name[i]) {
			return &ValidationError{Field: field, Reason: "may only contain letters, digits, spaces, '-' and '_'"}
		}
	}
	return nil
}
