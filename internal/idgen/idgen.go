// Package idgen mints identifiers for stored values and for specifications
// created without a name.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Kind is the prefix that marks what an identifier names.
type Kind string

const (
	Value         Kind = "sv-"
	Specification Kind = "spec-"
)

const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	size     = 10
)

// New returns a fresh identifier of kind k.
func New(k Kind) (string, error) {
	id, err := nanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("generating %sid: %w", k, err)
	}
	return string(k) + id, nil
}

// ValueID returns a new stored value identifier.
func ValueID() (string, error) { return New(Value) }

// SpecificationName returns a generated specification name.
func SpecificationName() (string, error) { return New(Specification) }

// Is reports whether id looks like one minted by New for kind k.
func Is(k Kind, id string) bool {
	rest, ok := strings.CutPrefix(id, string(k))
	if !ok || len(rest) != size {
		return false
	}
	for _, c := range rest {
		if !strings.ContainsRune(alphabet, c) {
			return false
		}
	}
	return true
}
