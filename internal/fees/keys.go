package fees

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/unicode/norm"

	"etfsave.life/web/internal/record"
)

// Field identifies one logical column of a fee row.
type Field int

const (
	FieldCategory Field = iota
	FieldCode
	FieldName
	FieldFee
	FieldOther
	FieldTrade
	FieldReal
	fieldCount
)

// canonical holds the header names the upstream sheet uses. The index of each name is
// also the positional fallback for that field.
var canonical = [fieldCount]string{
	FieldCategory: "구분",
	FieldCode:     "종목코드",
	FieldName:     "종목명",
	FieldFee:      "총보수",
	FieldOther:    "기타비용",
	FieldTrade:    "매매중개수수료",
	FieldReal:     "실부담비용",
}

var koreanStems = [fieldCount][]string{
	FieldCategory: {"분류"},
	FieldCode:     {"단축코드"},
	FieldName:     {"펀드명"},
	FieldFee:      {"합계"},
	FieldOther:    {"기타"},
	FieldTrade:    {"매매", "중개"},
	FieldReal:     {"실부담"},
}

// English fallbacks are matched case-insensitively.
var englishNames = [fieldCount][]string{
	FieldCategory: {"category"},
	FieldCode:     {"code", "ticker"},
	FieldName:     {"name"},
	FieldFee:      {"total fee", "total_fee", "management fee"},
	FieldOther:    {"other"},
	FieldTrade:    {"trade", "brokerage"},
	FieldReal:     {"real"},
}

// String returns the canonical header for f.
func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return ""
	}
	return canonical[f]
}

// Fields lists every logical field in positional order.
func Fields() []Field {
	out := make([]Field, 0, fieldCount)
	for f := Field(0); f < fieldCount; f++ {
		out = append(out, f)
	}
	return out
}

type candidate struct {
	text string
	fold bool
}

var candidates = buildCandidates()

func buildCandidates() [fieldCount][]candidate {
	garblers := []encoding.Encoding{charmap.Windows1252, charmap.ISO8859_1, korean.EUCKR}
	var out [fieldCount][]candidate
	for f := Field(0); f < fieldCount; f++ {
		seen := map[string]struct{}{}
		add := func(c candidate) {
			if c.text == "" {
				return
			}
			if _, ok := seen[c.text]; ok {
				return
			}
			seen[c.text] = struct{}{}
			out[f] = append(out[f], c)
		}
		native := append([]string{canonical[f]}, koreanStems[f]...)
		for _, s := range native {
			add(candidate{text: s})
			add(candidate{text: norm.NFD.String(s)})
			// Headers saved by tools that assumed a legacy code page arrive with the
			// UTF-8 bytes reinterpreted; match those spellings too.
			for _, enc := range garblers {
				if g, err := enc.NewDecoder().String(s); err == nil {
					add(candidate{text: g})
				}
			}
		}
		for _, s := range englishNames[f] {
			add(candidate{text: s, fold: true})
		}
	}
	return out
}

func (c candidate) matches(key string) bool {
	if c.fold {
		return strings.Contains(strings.ToLower(key), c.text)
	}
	return strings.Contains(key, c.text)
}

// Keys maps each logical field to the raw key used by one data set.
type Keys [fieldCount]string

// ResolveKeys picks, for every field, the raw key of sample that best matches it:
// an exact canonical header first, then the first key containing a known spelling,
// then the key at the field's position, and finally the canonical name itself.
func ResolveKeys(sample record.Record) Keys {
	var keys Keys
	raw := sample.Keys()
	for f := Field(0); f < fieldCount; f++ {
		keys[f] = resolveField(f, raw)
	}
	return keys
}

func resolveField(f Field, raw []string) string {
	for _, k := range raw {
		if k == canonical[f] {
			return k
		}
	}
	for _, k := range raw {
		for _, c := range candidates[f] {
			if c.matches(k) {
				return k
			}
		}
	}
	if int(f) < len(raw) {
		return raw[f]
	}
	return canonical[f]
}

// Key returns the raw key resolved for f.
func (k Keys) Key(f Field) string {
	if f < 0 || f >= fieldCount {
		return ""
	}
	return k[f]
}

// Value returns the raw cell of row for f.
func (k Keys) Value(row record.Record, f Field) any {
	v, _ := row.Get(k.Key(f))
	return v
}

// Text returns the trimmed text of row's cell for f.
func (k Keys) Text(row record.Record, f Field) string {
	return strings.TrimSpace(row.String(k.Key(f)))
}
