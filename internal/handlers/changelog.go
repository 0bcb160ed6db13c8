package handlers

import (
	"etfsave.life/web/internal/changelog"
	"etfsave.life/web/internal/fees"
	"etfsave.life/web/internal/format"
)

// ChangeRow is one changed value.
type ChangeRow struct {
	Code      string
	Name      string
	FieldKey  string
	Before    string
	After     string
	Direction string // "up", "down" or ""
}

// ChangelogGroup is one release.
type ChangelogGroup struct {
	Month     string
	UpdatedAt string
	Changes   []ChangeRow
}

// ChangelogData is the view model of the changelog page.
type ChangelogData struct {
	Groups []ChangelogGroup
	Failed bool
}

// Empty reports whether there is nothing to list.
func (d ChangelogData) Empty() bool { return !d.Failed && len(d.Groups) == 0 }

// field headers reuse the table column labels
var fieldKeys = map[string]string{
	fees.FieldFee.String():   "table_fee",
	fees.FieldOther.String(): "table_other",
	fees.FieldTrade.String(): "table_trade",
	fees.FieldReal.String():  "table_real",
}

// BuildChangelog converts entries, already sorted newest first, to the view model.
func BuildChangelog(entries []changelog.Entry) *ChangelogData {
	d := &ChangelogData{Groups: make([]ChangelogGroup, 0, len(entries))}
	for _, e := range entries {
		g := ChangelogGroup{
			Month:     e.Month,
			UpdatedAt: format.NormalizeDate(e.UpdatedAt),
			Changes:   make([]ChangeRow, 0, len(e.Changes)),
		}
		if g.UpdatedAt == "" {
			g.UpdatedAt = e.UpdatedAt
		}
		for _, c := range e.Changes {
			key := fieldKeys[c.Field]
			if key == "" {
				key = c.Field
			}
			g.Changes = append(g.Changes, ChangeRow{
				Code:      format.ValueOrDash(c.Code),
				Name:      format.ValueOrDash(c.Name),
				FieldKey:  key,
				Before:    percent(c.Before),
				After:     percent(c.After),
				Direction: direction(c.Before, c.After),
			})
		}
		d.Groups = append(d.Groups, g)
	}
	return d
}

func percent(v *float64) string {
	if v == nil {
		return format.Placeholder
	}
	return format.Percent(*v)
}

func direction(before, after *float64) string {
	if before == nil || after == nil {
		return ""
	}
	switch {
	case *after > *before:
		return "up"
	case *after < *before:
		return "down"
	}
	return ""
}
