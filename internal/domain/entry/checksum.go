package entry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot converts a normalized entry into its canonical map form: the flat
// wire shape with every null leaf stripped. This is the payload stored in
// version rows, hashed, and diffed. The server-authoritative createdAt and
// updatedAt are excluded: they are audit metadata carried on the version row
// itself, and keeping them out lets a restored entry's live state compare
// equal to the snapshot it was restored from.
func Snapshot(e *Entry) (map[string]interface{}, error) {
	flat := *e
	flat.CreatedAt = time.Time{}
	flat.UpdatedAt = time.Time{}
	data, err := json.Marshal(flat)
	if err != nil {
		return nil, fmt.Errorf("marshal entry snapshot: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal entry snapshot: %w", err)
	}
	stripNulls(m)
	return m, nil
}

// stripNulls recursively removes null leaves from nested maps and arrays so
// absent optional fields never influence a checksum.
func stripNulls(m map[string]interface{}) {
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			delete(m, k)
		case map[string]interface{}:
			stripNulls(val)
		case []interface{}:
			m[k] = stripNullsSlice(val)
		}
	}
}

func stripNullsSlice(s []interface{}) []interface{} {
	out := s[:0]
	for _, v := range s {
		switch val := v.(type) {
		case nil:
			continue
		case map[string]interface{}:
			stripNulls(val)
		case []interface{}:
			v = stripNullsSlice(val)
		}
		out = append(out, v)
	}
	return out
}

// Checksum computes the content hash of a normalized entry. The hash is
// taken over the canonical snapshot serialization, whose key order is stable
// (encoding/json emits map keys sorted), so logically identical snapshots
// hash identically regardless of original key order. Integrity check only,
// not a security boundary.
func Checksum(e *Entry) (string, error) {
	snap, err := Snapshot(e)
	if err != nil {
		return "", err
	}
	return ChecksumSnapshot(snap)
}

// ChecksumSnapshot computes the content hash of an already-materialized
// snapshot map.
func ChecksumSnapshot(snap map[string]interface{}) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot for checksum: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
