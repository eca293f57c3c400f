package fixed

import (
	"fmt"

	"github.com/igolaizola/gemchat/internal/memory"
)

// DefaultMaxExchanges is the number of user/assistant exchanges kept when no
// other value is configured.
const DefaultMaxExchanges = 5

type fixedMemory struct {
	maxTurns int
	turns    []memory.Turn
}

// NewFixedMemory returns a memory that keeps the last maxExchanges exchanges,
// that is, at most 2*maxExchanges turns. The initial turns are trimmed to the
// same bound.
func NewFixedMemory(maxExchanges int, initial ...memory.Turn) *fixedMemory {
	if maxExchanges < 1 {
		maxExchanges = DefaultMaxExchanges
	}
	m := &fixedMemory{
		maxTurns: maxExchanges * 2,
	}
	m.turns = append(m.turns, initial...)
	m.evict()
	return m
}

func (m *fixedMemory) Add(t memory.Turn) error {
	if !t.Role.Valid() {
		return fmt.Errorf("fixed: invalid role %q", t.Role)
	}
	m.turns = append(m.turns, t)
	m.evict()
	return nil
}

func (m *fixedMemory) Sum() ([]memory.Turn, error) {
	out := make([]memory.Turn, len(m.turns))
	copy(out, m.turns)
	return out, nil
}

// Len returns the number of stored turns.
func (m *fixedMemory) Len() int {
	return len(m.turns)
}

// Render returns the stored turns as prompt text.
func (m *fixedMemory) Render() string {
	return memory.Render(m.turns)
}

// Remove oldest turns until the bound holds
func (m *fixedMemory) evict() {
	if n := len(m.turns) - m.maxTurns; n > 0 {
		m.turns = append([]memory.Turn(nil), m.turns[n:]...)
	}
}
