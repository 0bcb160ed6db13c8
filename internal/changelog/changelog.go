// Package changelog records how fund fees move between data releases.
package changelog

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"etfsave.life/web/internal/fees"
	"etfsave.life/web/internal/format"
	"etfsave.life/web/internal/record"
)

// Tracked lists the fee fields compared between releases, in display order.
var Tracked = []fees.Field{fees.FieldFee, fees.FieldOther, fees.FieldTrade, fees.FieldReal}

// Change is one field of one fund that moved. Before and After are nil when the
// value was missing or unreadable on that side.
type Change struct {
	Code   string   `json:"code"`
	Name   string   `json:"name"`
	Field  string   `json:"field"`
	Before *float64 `json:"before"`
	After  *float64 `json:"after"`
}

// Entry groups the changes detected on one day.
type Entry struct {
	Month     string   `json:"month"`
	UpdatedAt string   `json:"updatedAt"`
	Changes   []Change `json:"changes"`
}

// SortDesc orders entries newest first by comparing UpdatedAt as strings.
// Entries sharing a date keep their relative order.
func SortDesc(entries []Entry) []Entry {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, func(a, b Entry) int {
		return cmp.Compare(b.UpdatedAt, a.UpdatedAt)
	})
	return out
}

type rowKey struct{ code, name string }

func index(rows []record.Record, keys fees.Keys) (map[rowKey]record.Record, []rowKey) {
	idx := make(map[rowKey]record.Record, len(rows))
	order := make([]rowKey, 0, len(rows))
	for _, row := range rows {
		k := rowKey{keys.Text(row, fees.FieldCode), keys.Text(row, fees.FieldName)}
		if k.code == "" && k.name == "" {
			continue
		}
		if _, seen := idx[k]; !seen {
			order = append(order, k)
		}
		idx[k] = row
	}
	return idx, order
}

func number(v any) *float64 {
	f, ok := format.ParseNumber(v)
	if !ok {
		return nil
	}
	return &f
}

func sameNumber(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Diff compares two releases. Funds are matched by (code, name); funds present on
// only one side are ignored. The result is sorted by code, then field order.
func Diff(prev, curr []record.Record) []Change {
	var prevSample, currSample record.Record
	if len(prev) > 0 {
		prevSample = prev[0]
	}
	if len(curr) > 0 {
		currSample = curr[0]
	}
	prevKeys, currKeys := fees.ResolveKeys(prevSample), fees.ResolveKeys(currSample)
	prevIdx, _ := index(prev, prevKeys)
	currIdx, order := index(curr, currKeys)

	changes := []Change{}
	for _, k := range order {
		before, ok := prevIdx[k]
		if !ok {
			continue
		}
		after := currIdx[k]
		for _, f := range Tracked {
			b := number(prevKeys.Value(before, f))
			a := number(currKeys.Value(after, f))
			if b == nil && a == nil {
				continue
			}
			if sameNumber(a, b) {
				continue
			}
			changes = append(changes, Change{Code: k.code, Name: k.name, Field: f.String(), Before: b, After: a})
		}
	}
	slices.SortStableFunc(changes, func(x, y Change) int {
		if c := cmp.Compare(x.Code, y.Code); c != 0 {
			return c
		}
		return cmp.Compare(fieldRank(x.Field), fieldRank(y.Field))
	})
	return changes
}

func fieldRank(name string) int {
	for i, f := range Tracked {
		if f.String() == name {
			return i
		}
	}
	return len(Tracked)
}

// Outcome describes what Append did.
type Outcome int

const (
	Unchanged Outcome = iota
	Appended
	ReplacedToday
)

func (o Outcome) String() string {
	switch o {
	case Appended:
		return "appended"
	case ReplacedToday:
		return "replaced"
	default:
		return "unchanged"
	}
}

// Append records changes detected on day. An empty change set or an identical entry
// for the same day leaves entries untouched; a different entry for the same day
// replaces it; anything else is appended.
func Append(entries []Entry, changes []Change, day time.Time) ([]Entry, Outcome) {
	if len(changes) == 0 {
		return entries, Unchanged
	}
	today := day.Format("2006-01-02")
	entry := Entry{Month: today[:7], UpdatedAt: today, Changes: changes}
	if n := len(entries); n > 0 && entries[n-1].UpdatedAt == today {
		if slices.EqualFunc(entries[n-1].Changes, changes, sameChange) {
			return entries, Unchanged
		}
		out := slices.Clone(entries)
		out[n-1] = entry
		return out, ReplacedToday
	}
	return append(slices.Clone(entries), entry), Appended
}

func sameChange(a, b Change) bool {
	return a.Code == b.Code && a.Name == b.Name && a.Field == b.Field &&
		sameNumber(a.Before, b.Before) && sameNumber(a.After, b.After)
}

// Decode reads a changelog document. Anything other than a JSON array is an error.
func Decode(r io.Reader) ([]Entry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, record.ErrNotArray
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode changelog: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Encode renders entries with two-space indentation and a trailing newline.
func Encode(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadFile loads a changelog file. A missing or unreadable file yields no entries.
func ReadFile(path string) ([]Entry, bool) {
	f, err := os.Open(path)
	if err != nil {
		return []Entry{}, false
	}
	defer f.Close()
	entries, err := Decode(f)
	if err != nil {
		return []Entry{}, false
	}
	return entries, true
}

// WriteIfChanged writes entries to path unless the file already holds the same bytes.
func WriteIfChanged(path string, entries []Entry) (bool, error) {
	data, err := Encode(entries)
	if err != nil {
		return false, err
	}
	current, err := os.ReadFile(path)
	switch {
	case err == nil && bytes.Equal(current, data):
		return false, nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return false, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
