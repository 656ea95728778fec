// Package snapshot implements the compressed serialization of world state
// used for snapshots and checkpoints.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/nathoo/worldcore/engine/state"
	"github.com/nathoo/worldcore/types"
)

// Version is the current snapshot format.
const Version = 1

// ErrVersion is returned for snapshots written in an unknown format.
var ErrVersion = errors.New("unsupported snapshot version")

// Header is written as the first JSON line so tools can identify a
// snapshot without decoding the whole state.
type Header struct {
	Version  int    `json:"version"`
	WorldID  string `json:"world_id"`
	Sequence uint64 `json:"sequence"`
	Time     int64  `json:"time"`
}

// Encode serializes a world as zstd(header line + JSON state).
func Encode(s *types.WorldState) ([]byte, error) {
	var buf bytes.Buffer
	hb, err := json.Marshal(Header{Version: Version, WorldID: s.WorldID, Sequence: s.Sequence, Time: s.Time})
	if err != nil {
		return nil, err
	}
	buf.Write(hb)
	buf.WriteByte('\n')
	if err := json.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(buf.Bytes(), nil), nil
}

// Decode restores a world written by Encode. Maps and sets are never nil
// after decoding.
func Decode(data []byte) (*types.WorldState, Header, error) {
	var h Header
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, h, err
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, h, fmt.Errorf("decompress snapshot: %w", err)
	}
	line, body, ok := bytes.Cut(raw, []byte{'\n'})
	if !ok {
		return nil, h, errors.New("snapshot has no header")
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, h, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return nil, h, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}

	var s types.WorldState
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, h, fmt.Errorf("decode state: %w", err)
	}
	// Clone allocates every map and set that JSON left nil.
	return state.Clone(&s), h, nil
}

// ReadHeader decodes only the header of a snapshot.
func ReadHeader(data []byte) (Header, error) {
	var h Header
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return h, err
	}
	defer dec.Close()
	if err := json.NewDecoder(dec).Decode(&h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
