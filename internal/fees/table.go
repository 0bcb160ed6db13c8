package fees

import (
	"cmp"
	"net/url"
	"slices"
	"strings"

	"etfsave.life/web/internal/format"
	"etfsave.life/web/internal/record"
)

// AllCategory selects every row regardless of category. Sheets never use "*" as a
// category, so a data category named "all" stays its own tab.
const AllCategory = "*"

// QuoteURL is the third-party quote page linked from each listed code.
const QuoteURL = "https://finance.naver.com/item/main.naver"

// Selection is the user's current view state.
type Selection struct {
	Category string
	Lang     string
	// Fixed marks a preset category page; the category is never reset.
	Fixed bool
}

// Normalize keeps the category when it is the all sentinel or present in categories.
// Otherwise it falls back to the first category, or AllCategory when there is none.
func (s Selection) Normalize(categories []string) Selection {
	if s.Fixed || s.Category == AllCategory {
		return s
	}
	if s.Category != "" && slices.Contains(categories, s.Category) {
		return s
	}
	if len(categories) > 0 {
		s.Category = categories[0]
	} else {
		s.Category = AllCategory
	}
	return s
}

// Categories returns the distinct, trimmed, non-empty categories in first-seen order.
func Categories(rows []record.Record, keys Keys) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, row := range rows {
		c := keys.Text(row, FieldCategory)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Filter returns the rows whose trimmed category equals category exactly.
// AllCategory and "" return every row.
func Filter(rows []record.Record, keys Keys, category string) []record.Record {
	if category == "" || category == AllCategory {
		return slices.Clone(rows)
	}
	out := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		if keys.Text(row, FieldCategory) == category {
			out = append(out, row)
		}
	}
	return out
}

// RealCost is the sort key of row. Unreadable values count as 0, so incomplete rows
// sit among the cheapest instead of dropping to the bottom.
func RealCost(row record.Record, keys Keys) float64 {
	f, ok := format.ParseNumber(keys.Value(row, FieldReal))
	if !ok {
		return 0
	}
	return f
}

// SortByRealCost returns rows ordered by ascending real cost. Ties keep their order.
func SortByRealCost(rows []record.Record, keys Keys) []record.Record {
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b record.Record) int {
		return cmp.Compare(RealCost(a, keys), RealCost(b, keys))
	})
	return out
}

// DisplayRow is one rendered table line. Values are plain text; escaping belongs to
// the template layer.
type DisplayRow struct {
	Category string
	Code     string
	Name     string
	Fee      string
	Other    string
	Trade    string
	Real     string
	Link     string
}

// HasCode reports whether the row carries a real code.
func (d DisplayRow) HasCode() bool { return d.Code != format.Placeholder }

// Render formats rows for display.
func Render(rows []record.Record, keys Keys) []DisplayRow {
	out := make([]DisplayRow, 0, len(rows))
	for _, row := range rows {
		d := DisplayRow{
			Category: format.ValueOrDash(keys.Value(row, FieldCategory)),
			Code:     format.ValueOrDash(keys.Value(row, FieldCode)),
			Name:     format.ValueOrDash(keys.Value(row, FieldName)),
			Fee:      format.Percent(keys.Value(row, FieldFee)),
			Other:    format.Percent(keys.Value(row, FieldOther)),
			Trade:    format.Percent(keys.Value(row, FieldTrade)),
			Real:     format.Percent(keys.Value(row, FieldReal)),
		}
		if d.HasCode() {
			d.Link = QuoteLink(d.Code)
		}
		out = append(out, d)
	}
	return out
}

// QuoteLink builds the quote page URL for code.
func QuoteLink(code string) string {
	code = strings.TrimSpace(code)
	if code == "" || code == format.Placeholder {
		return ""
	}
	return QuoteURL + "?code=" + url.QueryEscape(code)
}
