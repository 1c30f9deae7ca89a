package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// sourceHashField is the JSON key excluded from the hashed document.
const sourceHashField = "source_hash"

// ComputeSourceHash returns the hex SHA-256 of the product's canonical JSON.
//
// The canonical form is the product's JSON document without source_hash,
// with object keys sorted at every level, no insignificant whitespace and
// no HTML escaping. Numbers keep the textual form produced by encoding/json
// so the digest is reproducible by any implementation that serializes the
// same values the same way.
func ComputeSourceHash(p *CanonicalProduct) (string, error) {
	canonical, err := CanonicalJSON(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalJSON returns the bytes hashed by ComputeSourceHash.
func CanonicalJSON(p *CanonicalProduct) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal product: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode product document: %w", err)
	}
	delete(doc, sourceHashField)

	// encoding/json writes map keys in sorted order, which gives the
	// sorted-key form at every nesting level.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode canonical document: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
