package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// chunkKeyLength is the number of hex characters kept from the digest.
const chunkKeyLength = 16

// ChunkKey content-addresses a chunk: identical member sets in any order
// produce the same key, which makes chunk submission idempotent.
type ChunkKey string

// Chunk is a bounded group of resources processed as one remote batch job.
// Resources keep their input order; the key is order-independent.
type Chunk struct {
	Key       ChunkKey
	Resources []string
}

// NewChunk creates a chunk and computes its key.
func NewChunk(resources []string) Chunk {
	members := make([]string, len(resources))
	copy(members, resources)
	return Chunk{
		Key:       ComputeChunkKey(members),
		Resources: members,
	}
}

// ComputeChunkKey hashes the sorted, newline-joined identifiers with SHA-256.
func ComputeChunkKey(resources []string) ChunkKey {
	sorted := make([]string, len(resources))
	copy(sorted, resources)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return ChunkKey(hex.EncodeToString(sum[:])[:chunkKeyLength])
}
