package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	ChainHash   Hash
	TableHash   Hash
	Fingerprint Hash
	CodeVersion Hash
)

// Constructors
func NewChainHash(data []byte) ChainHash     { return ChainHash(NewHash(data)) }
func NewTableHash(data []byte) TableHash     { return TableHash(NewHash(data)) }
func NewFingerprint(data []byte) Fingerprint { return Fingerprint(NewHash(data)) }
func NewCodeVersion(data []byte) CodeVersion { return CodeVersion(NewHash(data)) }

// String conversions
func (h ChainHash) String() string   { return Hash(h).String() }
func (h TableHash) String() string   { return Hash(h).String() }
func (h Fingerprint) String() string { return Hash(h).String() }
func (h CodeVersion) String() string { return Hash(h).String() }

// ComputeChainHash fingerprints a stage list so two runs can prove they executed
// the same pipeline definition.
func ComputeChainHash(stageNames []string, langs []string) ChainHash {
	var data strings.Builder
	for _, name := range stageNames {
		data.WriteString(name)
		data.WriteString("|")
	}
	for _, lang := range langs {
		data.WriteString(lang)
		data.WriteString("|")
	}
	return NewChainHash([]byte(data.String()))
}

// ComputeTableHash fingerprints an observation grid in sorted cell order.
func ComputeTableHash(cells map[string]float64) TableHash {
	keys := make([]string, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("%.12g", cells[key]))
	}

	return NewTableHash([]byte(data.String()))
}
