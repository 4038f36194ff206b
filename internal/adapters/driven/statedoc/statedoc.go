// Package statedoc encodes and decodes the persisted sync state document.
// Every state backend stores the same bytes, so a document can be moved
// between the file, Redis and PostgreSQL stores unchanged.
package statedoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

// ErrCorrupt indicates a document that cannot be used as prior state.
var ErrCorrupt = errors.New("corrupt state document")

// Encode renders the state as indented JSON with a trailing newline.
// Map keys are emitted in sorted order, so equal states encode identically.
func Encode(state *domain.SyncState) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: nil state", domain.ErrInvalidInput)
	}
	doc := *state
	if doc.Version == 0 {
		doc.Version = domain.StateVersion
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a document. Malformed JSON, a non-object document and an
// unknown version all return ErrCorrupt. Missing maps are initialised.
func Decode(data []byte) (*domain.SyncState, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrCorrupt)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: document is not an object", ErrCorrupt)
	}

	state := &domain.SyncState{}
	if err := json.Unmarshal(trimmed, state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	switch state.Version {
	case 0:
		state.Version = domain.StateVersion
	case domain.StateVersion:
	default:
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, state.Version)
	}

	if state.JobRecords == nil {
		state.JobRecords = make(map[domain.ChunkKey]domain.JobRecord)
	}
	if state.DeletionCandidates == nil {
		state.DeletionCandidates = make(map[string]domain.DeletionCandidate)
	}
	for key, rec := range state.JobRecords {
		if rec.Key == "" {
			rec.Key = key
			state.JobRecords[key] = rec
		}
	}
	for id, c := range state.DeletionCandidates {
		if c.ID == "" {
			c.ID = id
			state.DeletionCandidates[id] = c
		}
	}
	return state, nil
}
