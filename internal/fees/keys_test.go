package fees

import (
	"testing"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"etfsave.life/web/internal/record"
)

func canonicalSample() record.Record {
	return record.Of(
		"구분", "국내주식",
		"종목코드", "069500",
		"종목명", "KODEX 200",
		"총보수", 0.15,
		"기타비용", 0.02,
		"매매중개수수료", 0.03,
		"실부담비용", 0.2,
	)
}

func TestResolveKeysCanonicalHeaders(t *testing.T) {
	keys := ResolveKeys(canonicalSample())
	for _, f := range Fields() {
		if got := keys.Key(f); got != f.String() {
			t.Fatalf("field %d: expected %q, got %q", f, f.String(), got)
		}
	}
}

func TestResolveKeysPositionalFallback(t *testing.T) {
	sample := record.Of(
		"구분", "국내주식",
		"종목코드", "069500",
		"종목명", "KODEX 200",
		"col_d", 0.15,
		"기타비용", 0.02,
		"매매중개수수료", 0.03,
		"실부담비용", 0.2,
	)
	keys := ResolveKeys(sample)
	if got := keys.Key(FieldFee); got != "col_d" {
		t.Fatalf("expected positional fallback col_d, got %q", got)
	}
	if got := keys.Key(FieldReal); got != "실부담비용" {
		t.Fatalf("expected exact match for real cost, got %q", got)
	}
}

func TestResolveKeysCanonicalWhenNothingAtPosition(t *testing.T) {
	keys := ResolveKeys(record.Of("x", 1))
	if got := keys.Key(FieldCategory); got != "x" {
		t.Fatalf("expected positional key x, got %q", got)
	}
	if got := keys.Key(FieldReal); got != "실부담비용" {
		t.Fatalf("expected canonical name, got %q", got)
	}
	if v := keys.Value(record.Of("x", 1), FieldReal); v != nil {
		t.Fatalf("expected missing value, got %v", v)
	}
}

func TestResolveKeysSubstringCandidates(t *testing.T) {
	sample := record.Of(
		"Category", "Bond",
		"Ticker Code", "148070",
		"Fund Name", "KOSEF 국고채10년",
		"Total Fee (A)", "0.15",
		"Other Cost", "0.01",
		"Trade Fee", "0.02",
		"Real Cost", "0.18",
	)
	keys := ResolveKeys(sample)
	want := Keys{"Category", "Ticker Code", "Fund Name", "Total Fee (A)", "Other Cost", "Trade Fee", "Real Cost"}
	if keys != want {
		t.Fatalf("got %v, want %v", keys, want)
	}
}

func TestResolveKeysMisencodedHeaders(t *testing.T) {
	garbled, err := charmap.Windows1252.NewDecoder().String("실부담비용")
	if err != nil {
		t.Fatalf("garble: %v", err)
	}
	decomposed := norm.NFD.String("구분")
	sample := record.Of(
		decomposed, "국내",
		"종목코드", "069500",
		"종목명", "KODEX 200",
		"총보수", 0.15,
		"기타비용", 0.02,
		"매매중개수수료", 0.03,
		" "+garbled+" ", 0.2,
	)
	keys := ResolveKeys(sample)
	if got := keys.Key(FieldReal); got != " "+garbled+" " {
		t.Fatalf("expected garbled header to resolve, got %q", got)
	}
	if got := keys.Key(FieldCategory); got != decomposed {
		t.Fatalf("expected decomposed header to resolve, got %q", got)
	}
}

func TestResolveKeysFirstMatchInRowOrder(t *testing.T) {
	sample := record.Of(
		"분류A", "x",
		"분류B", "y",
	)
	keys := ResolveKeys(sample)
	if got := keys.Key(FieldCategory); got != "분류A" {
		t.Fatalf("expected first matching key, got %q", got)
	}
}
