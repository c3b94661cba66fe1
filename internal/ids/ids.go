// Package ids provides unique ID generation behind an interface so that
// subsystems producing alerts, anomalies, dashboards, and reports can be
// tested with deterministic IDs.
package ids

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces unique identifiers.
type Generator interface {
	NewID() string
}

// UUIDGenerator is the production generator backed by random UUIDs.
type UUIDGenerator struct{}

// NewUUIDGenerator creates the default UUID-backed generator.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewID returns a random UUID string.
func (g *UUIDGenerator) NewID() string {
	return uuid.New().String()
}

// SequentialGenerator hands out prefixed counting IDs. Test-only.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequentialGenerator creates a deterministic generator with the given
// ID prefix.
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	return &SequentialGenerator{prefix: prefix}
}

// NewID returns the next ID in the sequence.
func (g *SequentialGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%s-%04d", g.prefix, g.next)
}
