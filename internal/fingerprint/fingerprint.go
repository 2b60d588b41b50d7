// Package fingerprint derives a stable content digest from a request payload.
// Two logically identical requests hash identically regardless of field order
// or timing. The digest is a dedup comparison input, not a security boundary.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash canonicalizes v (stable key order, nulls omitted) and returns the
// lowercase hex SHA-256 of the canonical form.
func Hash(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	// Round-trip through a generic value: encoding/json writes map keys in
	// sorted order, which gives us the canonical byte form.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}

	canonical, err := json.Marshal(stripNulls(generic))
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// stripNulls removes nil object members so that an absent field and an
// explicit null fingerprint the same.
func stripNulls(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			out[k] = stripNulls(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = stripNulls(val)
		}
		return out
	default:
		return v
	}
}
