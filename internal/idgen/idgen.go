// Package idgen mints the opaque per-connection client identifiers.
package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"github.com/google/uuid"
)

// Generator produces a fresh client identifier per call.
type Generator interface {
	NewID() string
}

// Numeric ID bounds: ten-digit decimal numbers, as game clients expect.
const (
	NumericMin int64 = 1_000_000_000
	NumericMax int64 = 10_000_000_000
)

// numeric draws uniformly from [NumericMin, NumericMax) using crypto/rand.
type numeric struct{}

// NewNumeric returns a Generator of ten-digit decimal IDs.
//
// Postcondition: Every ID parses to an integer in [NumericMin, NumericMax).
func NewNumeric() Generator {
	return numeric{}
}

// NewID returns a random ten-digit ID.
//
// Panics with "idgen: crypto/rand failure: <err>" if crypto/rand fails.
func (numeric) NewID() string {
	val, err := rand.Int(rand.Reader, big.NewInt(NumericMax-NumericMin))
	if err != nil {
		panic("idgen: crypto/rand failure: " + err.Error())
	}
	return strconv.FormatInt(NumericMin+val.Int64(), 10)
}

type uuidGen struct{}

// NewUUID returns a Generator of random (version 4) UUID strings.
func NewUUID() Generator {
	return uuidGen{}
}

// NewID returns a new UUID string.
func (uuidGen) NewID() string {
	return uuid.NewString()
}

// FuncGenerator adapts a function into a Generator.
type FuncGenerator func() string

// NewID calls f.
func (f FuncGenerator) NewID() string { return f() }

// FromScheme returns the Generator for a configured scheme name.
//
// Postcondition: Returns an error for any scheme other than "numeric" or "uuid".
func FromScheme(scheme string) (Generator, error) {
	switch scheme {
	case "numeric":
		return NewNumeric(), nil
	case "uuid":
		return NewUUID(), nil
	default:
		return nil, fmt.Errorf("unknown id scheme %q", scheme)
	}
}
