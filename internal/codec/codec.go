// Package codec serializes a repository collection for a remote store with
// per-item byte quotas. The collection is encoded as a single JSON array and
// split into size-bounded chunks; split points ignore JSON structure (and may
// fall inside a multi-byte sequence), so only the reassembled whole is
// meaningful. Decoding concatenates the chunks in index order and parses
// once — per-chunk corruption surfaces as a single parse failure, which
// callers treat as "no usable remote data".
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/repostash/repostash/internal/model"
)

// Marshal renders the collection as its canonical JSON text. A nil
// collection encodes as an empty array so the remote payload is always a
// valid JSON array.
func Marshal(repos []model.Repo) (string, error) {
	if repos == nil {
		repos = []model.Repo{}
	}
	data, err := json.Marshal(repos)
	if err != nil {
		return "", fmt.Errorf("encoding collection: %w", err)
	}
	return string(data), nil
}

// Size returns the encoded byte length of the collection. Go strings are
// UTF-8, so len() is already the byte measurement the remote quota needs.
func Size(repos []model.Repo) (int, error) {
	s, err := Marshal(repos)
	if err != nil {
		return 0, err
	}
	return len(s), nil
}

// Chunk splits s into substrings of at most chunkSize bytes.
func Chunk(s string, chunkSize int) []string {
	if chunkSize <= 0 {
		return []string{s}
	}
	chunks := make([]string, 0, len(s)/chunkSize+1)
	for i := 0; i < len(s); i += chunkSize {
		end := i + chunkSize
		if end > len(s) {
			end = len(s)
		}
		chunks = append(chunks, s[i:end])
	}
	if len(chunks) == 0 {
		chunks = append(chunks, "")
	}
	return chunks
}

// Encode marshals the collection and splits it into chunks of at most
// maxChunkBytes each.
func Encode(repos []model.Repo, maxChunkBytes int) ([]string, error) {
	s, err := Marshal(repos)
	if err != nil {
		return nil, err
	}
	return Chunk(s, maxChunkBytes), nil
}

// Decode reassembles chunks in the given order and parses the result. The
// payload must be a JSON array of records; anything else is an error.
func Decode(chunks []string) ([]model.Repo, error) {
	var total int
	for _, c := range chunks {
		total += len(c)
	}
	buf := make([]byte, 0, total)
	for _, c := range chunks {
		buf = append(buf, c...)
	}

	var repos []model.Repo
	if err := json.Unmarshal(buf, &repos); err != nil {
		return nil, fmt.Errorf("decoding collection: %w", err)
	}
	return repos, nil
}
