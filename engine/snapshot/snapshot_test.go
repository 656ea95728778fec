package snapshot

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/types"
)

func testWorld() *types.WorldState {
	s := state.NewWorld("w1", 42)
	s.Time = 7
	s.Sequence = 5
	s.Mood = "tense"
	s.Locations["hall"] = types.Location{
		ID: "hall", Name: "Hall",
		Exits:  map[string]string{"north": "garden"},
		Guards: map[string][]types.Condition{"north": {{Type: "stat_gt", Params: map[string]any{"stat": "str", "value": 3}}}},
		NPCs:   []string{"guard"},
		Items:  []string{"key"},
	}
	s.Locations["garden"] = types.Location{ID: "garden", Exits: map[string]string{"south": "hall"}}
	s.NPCs["guard"] = types.NPC{ID: "guard", Name: "Guard", Location: "hall", Tags: []string{"sleepy"}, Relationship: -5, Active: true}
	s.Players["p1"] = types.Player{ID: "p1", Location: "garden", Inventory: []string{"lamp"}, Stats: map[string]int{"str": 4}, Turn: 5}
	s.Flags["door_open"] = true
	return s
}

func TestRoundTrip(t *testing.T) {
	s := testWorld()

	data, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, h, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if h.WorldID != "w1" || h.Sequence != 5 || h.Time != 7 || h.Version != Version {
		t.Errorf("header = %+v", h)
	}
	want, _ := state.Digest(s)
	gotDigest, _ := state.Digest(got)
	if want != gotDigest {
		t.Errorf("digest changed across round trip")
	}
	if got.Players["p1"].Stats["str"] != 4 {
		t.Errorf("stats = %v", got.Players["p1"].Stats)
	}
}

func TestDecode_NilSetsNormalized(t *testing.T) {
	// garden was built without NPC or item sets.
	data, err := Encode(testWorld())
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	garden := got.Locations["garden"]
	if garden.NPCs == nil || garden.Items == nil {
		t.Error("sets should never be nil after decode")
	}
}

func TestReadHeader(t *testing.T) {
	data, _ := Encode(testWorld())
	h, err := ReadHeader(data)
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if h.Sequence != 5 {
		t.Errorf("sequence = %d", h.Sequence)
	}
}

func TestDecode_UnknownVersion(t *testing.T) {
	hb, _ := json.Marshal(Header{Version: 99, WorldID: "w1"})
	raw := append(hb, '\n')
	raw = append(raw, []byte("{}")...)
	enc, _ := zstd.NewWriter(nil)
	data := enc.EncodeAll(raw, nil)
	enc.Close()

	_, _, err := Decode(data)
	if !errors.Is(err, ErrVersion) {
		t.Fatalf("expected ErrVersion, got %v", err)
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, _, err := Decode([]byte("not a snapshot")); err == nil {
		t.Fatal("expected error")
	}
}
