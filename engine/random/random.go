// Package random derives deterministic random values from a key.
// There is no generator state: every value is a pure function of
// (seed root, world id, time, action sequence, draw index), so replaying
// a log entry reproduces its draws from the seed material alone.
package random

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/nathoo/worldcore/types"
)

// Key identifies a single draw.
type Key struct {
	Root     int64
	WorldID  string
	Time     int64
	Sequence uint64
	Index    int
}

// Draw returns the value for a key. Same key, same value.
func Draw(k Key) uint64 {
	var buf [8]byte
	h := sha256.New()

	binary.BigEndian.PutUint64(buf[:], uint64(k.Root))
	h.Write(buf[:])
	h.Write([]byte(k.WorldID))
	h.Write([]byte{0})
	binary.BigEndian.PutUint64(buf[:], uint64(k.Time))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], k.Sequence)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(k.Index))
	h.Write(buf[:])

	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// Stream hands out consecutive draws for one action and records them.
// A Stream is not safe for concurrent use; each action gets its own.
type Stream struct {
	base  Key
	draws []types.Draw
}

// NewStream creates the stream for the action with the given sequence,
// resolved at world time t.
func NewStream(root int64, worldID string, t int64, seq uint64) *Stream {
	return &Stream{base: Key{Root: root, WorldID: worldID, Time: t, Sequence: seq}}
}

// FromSeed rebuilds the stream an entry consumed.
func FromSeed(worldID string, m types.SeedMaterial) *Stream {
	return NewStream(m.Root, worldID, m.Time, m.Sequence)
}

// Next returns the next raw draw.
func (s *Stream) Next() uint64 {
	k := s.base
	k.Index = len(s.draws)
	v := Draw(k)
	s.draws = append(s.draws, types.Draw{Index: k.Index, Value: v})
	return v
}

// Roll returns a value in [1, sides].
func (s *Stream) Roll(sides int) int {
	if sides <= 0 {
		sides = 1
	}
	return int(s.Next()%uint64(sides)) + 1
}

// Percent returns a value in [1, 100].
func (s *Stream) Percent() int {
	return s.Roll(100)
}

// Chance consumes one draw and reports whether it landed within percent.
func (s *Stream) Chance(percent int) bool {
	return s.Percent() <= percent
}

// Draws returns a copy of the draws consumed so far.
func (s *Stream) Draws() []types.Draw {
	out := make([]types.Draw, len(s.draws))
	copy(out, s.draws)
	return out
}

// Sequence returns the action sequence the stream is keyed on.
func (s *Stream) Sequence() uint64 {
	return s.base.Sequence
}

// Material returns the seed material to record alongside the entry.
func (s *Stream) Material() types.SeedMaterial {
	return types.SeedMaterial{
		Root:     s.base.Root,
		Time:     s.base.Time,
		Sequence: s.base.Sequence,
		Draws:    len(s.draws),
	}
}
