// Package normalize maps loosely-typed provider posts to canonical rows.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"postsync/internal/core/domain"
)

// DefaultCategory is the content category tag written on every row.
const DefaultCategory = "Update KSP"

const permalinkFormat = "https://www.instagram.com/p/%s/"

// Candidate field names per logical field, highest priority first.
var (
	timestampFields = []string{"timestamp", "postedAt", "createdAt", "date"}
	thumbnailFields = []string{"imageUrl", "displayUrl", "thumbnail", "image"}
	captionFields   = []string{"caption", "description", "text"}
	urlFields       = []string{"url", "link"}
)

// Epoch numbers below this are taken as seconds, above it as milliseconds.
const epochSecondsCutoff = 1e11

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Normalizer converts provider posts into rows. It has no side effects.
type Normalizer struct {
	location *time.Location
	category string
	now      func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the clock used for posts without a usable timestamp.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// WithCategory overrides the category tag.
func WithCategory(category string) Option {
	return func(n *Normalizer) { n.category = category }
}

// New creates a Normalizer rendering times in loc (UTC when nil).
func New(loc *time.Location, opts ...Option) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	n := &Normalizer{
		location: loc,
		category: DefaultCategory,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Row normalizes a single post. Missing fields become empty strings and a
// missing timestamp becomes the current instant; it never fails.
func (n *Normalizer) Row(post domain.RawPost) domain.Row {
	t, ok := n.instant(post)
	if !ok {
		t = n.now()
	}
	return n.row(post, t)
}

// Posts normalizes a batch, ordered oldest to newest. Posts without a
// timestamp share one instant taken for the batch and sort first.
func (n *Normalizer) Posts(posts []domain.RawPost) []domain.Row {
	type dated struct {
		row     domain.Row
		missing bool
	}

	now := n.now()
	batch := make([]dated, 0, len(posts))
	for _, p := range posts {
		t, ok := n.instant(p)
		if !ok {
			t = now
		}
		batch = append(batch, dated{row: n.row(p, t), missing: !ok})
	}
	slices.SortStableFunc(batch, func(a, b dated) int {
		switch {
		case a.missing && b.missing:
			return 0
		case a.missing:
			return -1
		case b.missing:
			return 1
		}
		return a.row.PostedAt.Compare(b.row.PostedAt)
	})

	rows := make([]domain.Row, len(batch))
	for i, d := range batch {
		rows[i] = d.row
	}
	return rows
}

func (n *Normalizer) row(post domain.RawPost, t time.Time) domain.Row {
	t = t.In(n.location)
	return domain.Row{
		PostedAt:     t,
		CapturedTime: FormatClock(t),
		Date:         FormatDate(t),
		Weekday:      WeekdayName(t),
		Month:        MonthName(t),
		Category:     n.category,
		ThumbnailURL: firstString(post, thumbnailFields),
		Caption:      firstString(post, captionFields),
		PostURL:      postURL(post),
	}
}

func (n *Normalizer) instant(post domain.RawPost) (time.Time, bool) {
	for _, field := range timestampFields {
		if t, ok := parseInstant(post[field], n.location); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseInstant(v any, loc *time.Location) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, true
			}
		}
	case float64:
		return fromEpoch(val)
	case int64:
		return fromEpoch(float64(val))
	case int:
		return fromEpoch(float64(val))
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return fromEpoch(f)
		}
	}
	return time.Time{}, false
}

func fromEpoch(v float64) (time.Time, bool) {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}, false
	}
	if v < epochSecondsCutoff {
		return time.Unix(int64(v), 0), true
	}
	return time.UnixMilli(int64(v)), true
}

func firstString(post domain.RawPost, fields []string) string {
	for _, field := range fields {
		if s, ok := post[field].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func postURL(post domain.RawPost) string {
	if u := firstString(post, urlFields); u != "" {
		return u
	}
	if code, ok := post["shortCode"].(string); ok && code != "" {
		return fmt.Sprintf(permalinkFormat, code)
	}
	return ""
}
