package sqlite

import "github.com/oklog/ulid/v2"

// ULIDGenerator generates ULID-based entity ids; lexicographic order
// follows creation time.
type ULIDGenerator struct{}

// NewULIDGenerator creates a new ULIDGenerator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// Generate generates a new ULID.
func (g *ULIDGenerator) Generate() string {
	return ulid.Make().String()
}
