// Package csvcodec encodes canonical rows as CSV text and appends to existing artifacts.
package csvcodec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"postsync/internal/core/domain"
)

// ContentType is the MIME type of serialized artifacts.
const ContentType = "text/csv"

// Serialize renders a header line followed by one line per row.
func Serialize(s Schema, rows []domain.Row) string {
	var b strings.Builder
	writeLine(&b, s.Header())
	for _, r := range rows {
		b.WriteByte('\n')
		writeLine(&b, s.Values(r))
	}
	return b.String()
}

// AppendMerge appends the data lines of rows to an existing artifact,
// keeping its single header. Blank existing text yields Serialize(s, rows).
// It does not deduplicate; merge the rows structurally first.
func AppendMerge(existing string, s Schema, rows []domain.Row) string {
	base := strings.TrimSpace(existing)
	if base == "" {
		return Serialize(s, rows)
	}

	var b strings.Builder
	b.WriteString(base)
	for _, r := range rows {
		b.WriteByte('\n')
		writeLine(&b, s.Values(r))
	}
	return b.String()
}

// Decode parses an artifact and detects its schema from the header.
// Blank text decodes to no rows in the fallback schema.
func Decode(text string, fallback Schema) (Schema, []domain.Row, error) {
	if strings.TrimSpace(text) == "" {
		return fallback, nil, nil
	}

	r := csv.NewReader(strings.NewReader(text))
	header, err := r.Read()
	if err != nil {
		return Schema{}, nil, fmt.Errorf("read header: %w: %w", domain.ErrFormat, err)
	}
	schema, err := DetectSchema(header)
	if err != nil {
		return Schema{}, nil, err
	}

	var rows []domain.Row
	for {
		record, readErr := r.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return Schema{}, nil, fmt.Errorf("read record: %w: %w", domain.ErrFormat, readErr)
		}
		rows = append(rows, schema.Row(record))
	}
	return schema, rows, nil
}

func writeLine(b *strings.Builder, values []string) {
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escape(v))
	}
}

var crReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// escape quotes v when needed. Carriage returns are written as "\n";
// encoding/csv reads a quoted "\r\n" back as "\n" anyway.
func escape(v string) string {
	if !strings.ContainsAny(v, ",\"\n\r") {
		return v
	}
	v = crReplacer.Replace(v)
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}
