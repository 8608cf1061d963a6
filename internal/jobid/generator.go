// Package jobid issues job identifiers.
package jobid

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

// layout renders an instant as YYYYMMDD_HHMMSS followed by six fractional digits.
const layout = "20060102_150405.000000"

var validID = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z_-]{0,63}$`)

// Generator issues identifiers.
type Generator interface {
	New() string
}

// Clock returns the current time.
type Clock func() time.Time

// TimestampGenerator issues sortable microsecond UTC timestamps. When the clock has not
// advanced since the previous call it issues the previous instant plus one microsecond,
// so identifiers are strictly increasing within the process.
type TimestampGenerator struct {
	mu    sync.Mutex
	clock Clock
	last  time.Time
}

// NewTimestampGenerator creates a generator reading the system clock.
func NewTimestampGenerator() *TimestampGenerator {
	return NewTimestampGeneratorWithClock(time.Now)
}

// NewTimestampGeneratorWithClock creates a generator reading clock.
func NewTimestampGeneratorWithClock(clock Clock) *TimestampGenerator {
	return &TimestampGenerator{clock: clock}
}

// New returns the next identifier.
func (g *TimestampGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock().UTC().Truncate(time.Microsecond)
	if !now.After(g.last) {
		now = g.last.Add(time.Microsecond)
	}
	g.last = now

	return format(now)
}

func format(t time.Time) string {
	s := t.Format(layout)
	// drop the '.' the layout needs to express fractional seconds
	return s[:15] + s[16:]
}

// UUIDGenerator issues UUIDv7 identifiers, which sort by creation time.
type UUIDGenerator struct{}

// New returns the next identifier.
func (UUIDGenerator) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does
		return uuid.NewString()
	}
	return id.String()
}

// NewGenerator returns the generator for a configured strategy.
func NewGenerator(strategy string) (Generator, error) {
	switch strategy {
	case "", "timestamp":
		return NewTimestampGenerator(), nil
	case "uuid":
		return UUIDGenerator{}, nil
	default:
		return nil, fmt.Errorf("unknown id strategy %q", strategy)
	}
}

// Valid reports whether id is safe to use as a path component.
func Valid(id string) bool {
	return validID.MatchString(id)
}
