package csvcodec

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"postsync/internal/core/domain"
)

// KeyColumn is the header of the column holding the unique post URL.
const KeyColumn = "Link post"

type column struct {
	header string
	get    func(domain.Row) string
	set    func(*domain.Row, string)
}

// Schema is a versioned column layout for persisted rows.
type Schema struct {
	name    string
	columns []column
}

var compactColumns = []column{
	{"Timestamp", func(r domain.Row) string { return r.CapturedTime }, func(r *domain.Row, v string) { r.CapturedTime = v }},
	{"Tgl", func(r domain.Row) string { return r.Date }, func(r *domain.Row, v string) { r.Date = v }},
	{"Hari", func(r domain.Row) string { return r.Weekday }, func(r *domain.Row, v string) { r.Weekday = v }},
	{"Bulan", func(r domain.Row) string { return r.Month }, func(r *domain.Row, v string) { r.Month = v }},
	{"Rubrik Konten", func(r domain.Row) string { return r.Category }, func(r *domain.Row, v string) { r.Category = v }},
	{"Thumbnail", func(r domain.Row) string { return r.ThumbnailURL }, func(r *domain.Row, v string) { r.ThumbnailURL = v }},
	{"Narasi 1", func(r domain.Row) string { return r.Caption }, func(r *domain.Row, v string) { r.Caption = v }},
	{KeyColumn, func(r domain.Row) string { return r.PostURL }, func(r *domain.Row, v string) { r.PostURL = v }},
}

var rawTimestampColumn = column{
	header: "Raw Timestamp",
	get: func(r domain.Row) string {
		if r.PostedAt.IsZero() {
			return ""
		}
		return r.PostedAt.Format(time.RFC3339)
	},
	set: func(r *domain.Row, v string) {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			r.PostedAt = t
		}
	},
}

var (
	// Compact is the 8-column layout (v1): time of day, date parts, category, thumbnail, caption, URL.
	Compact = Schema{name: "compact", columns: compactColumns}
	// Timestamped is the 9-column layout (v2): the RFC 3339 instant followed by the compact columns.
	Timestamped = Schema{name: "timestamped", columns: append([]column{rawTimestampColumn}, compactColumns...)}
)

var schemas = []Schema{Compact, Timestamped}

// SchemaByName looks up a schema by its configuration name.
func SchemaByName(name string) (Schema, error) {
	for _, s := range schemas {
		if s.name == name {
			return s, nil
		}
	}
	return Schema{}, fmt.Errorf("unknown schema %q: %w", name, domain.ErrConfiguration)
}

// DetectSchema finds the schema whose header matches exactly.
func DetectSchema(header []string) (Schema, error) {
	if len(header) > 0 {
		header = slices.Clone(header)
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for _, s := range schemas {
		if slices.Equal(header, s.Header()) {
			return s, nil
		}
	}
	return Schema{}, fmt.Errorf("unrecognized header %q: %w", strings.Join(header, ","), domain.ErrFormat)
}

// Name returns the configuration name of the schema.
func (s Schema) Name() string { return s.name }

// IsZero reports whether s is the zero Schema.
func (s Schema) IsZero() bool { return len(s.columns) == 0 }

// Header returns the column names in order.
func (s Schema) Header() []string {
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.header
	}
	return out
}

// Values returns the row's cell values in column order.
func (s Schema) Values(r domain.Row) []string {
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.get(r)
	}
	return out
}

// Row builds a row from cell values in column order. Missing cells stay empty.
func (s Schema) Row(values []string) domain.Row {
	var r domain.Row
	for i, c := range s.columns {
		if i < len(values) {
			c.set(&r, values[i])
		}
	}
	return r
}
