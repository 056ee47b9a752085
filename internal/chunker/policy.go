// Package chunker normalises extracted text and splits it into overlapping
// chunks for embedding. Both operations are pure functions of their inputs
// and are safe to call from multiple goroutines.
//
// A chunk size is measured in one of two units, selected by [Policy.Unit]:
//
//	characters = Unicode code points (default: 3000 per chunk, 450 overlap)
//	tokens     = word-segmentation tokens (default: 1000 per chunk, 150 overlap)
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// Unit selects how chunk positions and sizes are measured.
type Unit string

const (
	// UnitCharacters measures chunks in Unicode code points.
	UnitCharacters Unit = "characters"
	// UnitTokens measures chunks in word-segmentation tokens.
	UnitTokens Unit = "tokens"
)

// Default sizes per unit.
const (
	DefaultCharacterChunkSize = 3000
	DefaultCharacterOverlap   = 450
	DefaultTokenChunkSize     = 1000
	DefaultTokenOverlap       = 150
)

// ErrInvalidPolicy is the sentinel matched by every *InvalidPolicyError.
var ErrInvalidPolicy = errors.New("invalid chunking policy")

// InvalidPolicyError reports a malformed chunking configuration.
type InvalidPolicyError struct {
	// Policy is the rejected configuration.
	Policy Policy
	// Reason describes which constraint was violated.
	Reason string
}

// Error implements the error interface.
func (e *InvalidPolicyError) Error() string {
	return fmt.Sprintf("chunker: invalid policy (unit=%s size=%d overlap=%d): %s",
		e.Policy.Unit, e.Policy.ChunkSize, e.Policy.Overlap, e.Reason)
}

// Is reports whether target is ErrInvalidPolicy.
func (e *InvalidPolicyError) Is(target error) bool {
	return target == ErrInvalidPolicy
}

// Policy configures how text is split into chunks.
type Policy struct {
	// Unit selects characters or tokens. Empty means characters.
	Unit Unit `json:"unit"`
	// ChunkSize is the target size of each chunk in Unit. Must be positive.
	ChunkSize int `json:"chunk_size"`
	// Overlap is the amount of content repeated between consecutive chunks.
	// Must be non-negative and strictly less than ChunkSize.
	Overlap int `json:"overlap"`
}

// DefaultPolicy returns the default policy for the given unit.
// Unknown units fall back to characters.
func DefaultPolicy(unit Unit) Policy {
	if unit == UnitTokens {
		return Policy{Unit: UnitTokens, ChunkSize: DefaultTokenChunkSize, Overlap: DefaultTokenOverlap}
	}
	return Policy{Unit: UnitCharacters, ChunkSize: DefaultCharacterChunkSize, Overlap: DefaultCharacterOverlap}
}

// Validate checks the policy invariants and returns an *InvalidPolicyError
// describing the first violation.
func (p Policy) Validate() error {
	switch {
	case p.Unit != "" && p.Unit != UnitCharacters && p.Unit != UnitTokens:
		return &InvalidPolicyError{Policy: p, Reason: fmt.Sprintf("unknown unit %q", p.Unit)}
	case p.ChunkSize <= 0:
		return &InvalidPolicyError{Policy: p, Reason: "chunk size must be positive"}
	case p.Overlap < 0:
		return &InvalidPolicyError{Policy: p, Reason: "overlap must not be negative"}
	case p.Overlap >= p.ChunkSize:
		return &InvalidPolicyError{Policy: p, Reason: "overlap must be smaller than chunk size"}
	}
	return nil
}

// unit returns the effective unit, treating empty as characters.
func (p Policy) unit() Unit {
	if p.Unit == "" {
		return UnitCharacters
	}
	return p.Unit
}

// ParseUnit converts a configuration string into a Unit.
// Accepts "characters", "chars", "char", "tokens", "token" (case-insensitive).
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "characters", "character", "chars", "char":
		return UnitCharacters, nil
	case "tokens", "token":
		return UnitTokens, nil
	default:
		return "", fmt.Errorf("chunker: unknown unit %q (valid values: characters, tokens)", s)
	}
}
