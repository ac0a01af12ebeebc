// Package merge implements the key-based, append-only merge of row batches.
package merge

import (
	"fmt"
	"slices"
	"strings"

	"postsync/internal/core/domain"
)

// KeyFunc extracts the unique key of a row.
type KeyFunc[R any] func(R) string

// Result is the merged collection plus counts describing the candidate batch.
type Result[R any] struct {
	// Rows holds the existing rows unchanged, then the inserted candidates.
	Rows []R
	// Added holds only the inserted candidates, in input order.
	Added []R

	Considered int
	Inserted   int
	Skipped    int // key already present
	MissingKey int // dropped for an empty key
}

// Merge appends to existing every candidate whose key is non-empty and not
// yet seen. Existing rows keep their order and are never dropped; only the
// first occurrence of a key within candidates survives. Keys are compared
// after trimming surrounding whitespace.
func Merge[R any](existing, candidates []R, key KeyFunc[R]) Result[R] {
	seen := make(map[string]struct{}, len(existing)+len(candidates))
	for _, r := range existing {
		if k := strings.TrimSpace(key(r)); k != "" {
			seen[k] = struct{}{}
		}
	}

	res := Result[R]{Considered: len(candidates)}
	for _, r := range candidates {
		k := strings.TrimSpace(key(r))
		if k == "" {
			res.MissingKey++
			continue
		}
		if _, dup := seen[k]; dup {
			res.Skipped++
			continue
		}
		seen[k] = struct{}{}
		res.Added = append(res.Added, r)
	}
	res.Inserted = len(res.Added)

	res.Rows = make([]R, 0, len(existing)+len(res.Added))
	res.Rows = append(res.Rows, existing...)
	res.Rows = append(res.Rows, res.Added...)
	return res
}

// PostURL keys canonical rows by their post URL.
func PostURL(r domain.Row) string {
	return r.PostURL
}

// ColumnKey returns a KeyFunc reading the named column of positional rows.
// Rows shorter than the header yield an empty key.
func ColumnKey(header []string, name string) (KeyFunc[[]string], error) {
	idx := slices.Index(header, name)
	if idx < 0 {
		return nil, fmt.Errorf("key column %q not in header: %w", name, domain.ErrFormat)
	}
	return func(row []string) string {
		if idx >= len(row) {
			return ""
		}
		return row[idx]
	}, nil
}
