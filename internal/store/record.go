package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskweave/internal/core"
)

// ErrNotFound is returned by LoadOutputs for identities the store does not hold.
var ErrNotFound = errors.New("completion not found")

// record is the persisted form of one completion.
type record struct {
	Key         string       `json:"key"`
	Outputs     core.Outputs `json:"outputs"`
	CompletedAt time.Time    `json:"completed_at"`
}

func encodeRecord(id core.Identity, outputs core.Outputs) ([]byte, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("zero identity")
	}
	rec := record{Key: id.String(), Outputs: outputs.Clone(), CompletedAt: time.Now().UTC()}
	return json.MarshalIndent(rec, "", "  ")
}

// decodeRecord parses data and checks that it belongs to id. Records are
// addressed by hash; the key comparison rejects a colliding entry.
func decodeRecord(id core.Identity, data []byte) (core.Outputs, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode completion record %s: %w", id.Short(), err)
	}
	if rec.Key != id.String() {
		return nil, fmt.Errorf("completion record %s holds key %q, want %q", id.Short(), rec.Key, id.String())
	}
	if rec.Outputs == nil {
		rec.Outputs = core.Outputs{}
	}
	return rec.Outputs, nil
}

// recordName is the slash-separated relative name of id's record. The first
// two characters of the hash form a prefix directory to keep directories small.
func recordName(id core.Identity) string {
	h := id.Hash()
	if len(h) < 2 {
		return h + ".json"
	}
	return h[:2] + "/" + h + ".json"
}

func notFound(id core.Identity) error {
	return fmt.Errorf("%s: %w", id.Short(), ErrNotFound)
}
