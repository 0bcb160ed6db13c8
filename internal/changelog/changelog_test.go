package changelog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfsave.life/web/internal/record"
)

func fund(code, name string, fee, other, trade, real any) record.Record {
	return record.Of(
		"구분", "국내주식",
		"종목코드", code,
		"종목명", name,
		"총보수", fee,
		"기타비용", other,
		"매매중개수수료", trade,
		"실부담비용", real,
	)
}

func ptr(f float64) *float64 { return &f }

func TestSortDescByUpdatedAt(t *testing.T) {
	entries := []Entry{
		{Month: "2024-05", UpdatedAt: "2024-05"},
		{Month: "2024-06", UpdatedAt: "2024-06"},
		{Month: "2024-06", UpdatedAt: "2024-06-01"},
	}
	got := SortDesc(entries)
	assert.Equal(t, "2024-06-01", got[0].UpdatedAt)
	assert.Equal(t, "2024-06", got[1].UpdatedAt)
	assert.Equal(t, "2024-05", got[2].UpdatedAt)
	assert.Equal(t, "2024-05", entries[0].UpdatedAt, "input untouched")
}

func TestDiff(t *testing.T) {
	prev := []record.Record{
		fund("069500", "KODEX 200", "0.15", "0.01", "0.02", "0.18"),
		fund("102110", "TIGER 200", "0.05", nil, "0.01", "0.06"),
		fund("999999", "Gone", "1", "1", "1", "3"),
	}
	curr := []record.Record{
		fund("102110", "TIGER 200", "0.05", "0.02", "0.01", "0.08"),
		fund("069500", "KODEX 200", "0.15", "0.01", "0.020", "0.16"),
		fund("123456", "New", "1", "1", "1", "3"),
		fund("", "", "9", "9", "9", "9"),
	}
	got := Diff(prev, curr)
	assert.Equal(t, []Change{
		{Code: "069500", Name: "KODEX 200", Field: "실부담비용", Before: ptr(0.18), After: ptr(0.16)},
		{Code: "102110", Name: "TIGER 200", Field: "기타비용", Before: nil, After: ptr(0.02)},
		{Code: "102110", Name: "TIGER 200", Field: "실부담비용", Before: ptr(0.06), After: ptr(0.08)},
	}, got)
}

func TestDiffWithoutPrevious(t *testing.T) {
	assert.Empty(t, Diff(nil, []record.Record{fund("1", "a", 1, 1, 1, 1)}))
}

func TestAppend(t *testing.T) {
	day := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	changes := []Change{{Code: "1", Name: "a", Field: "총보수", Before: ptr(1), After: ptr(2)}}

	entries, outcome := Append(nil, nil, day)
	assert.Equal(t, Unchanged, outcome)
	assert.Empty(t, entries)

	entries, outcome = Append([]Entry{{Month: "2025-03", UpdatedAt: "2025-03-01"}}, changes, day)
	require.Equal(t, Appended, outcome)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Month: "2025-03", UpdatedAt: "2025-03-04", Changes: changes}, entries[1])

	same := []Change{{Code: "1", Name: "a", Field: "총보수", Before: ptr(1), After: ptr(2)}}
	again, outcome := Append(entries, same, day)
	assert.Equal(t, Unchanged, outcome)
	assert.Len(t, again, 2)

	other := []Change{{Code: "1", Name: "a", Field: "총보수", Before: ptr(1), After: nil}}
	replaced, outcome := Append(entries, other, day)
	assert.Equal(t, ReplacedToday, outcome)
	require.Len(t, replaced, 2)
	assert.Equal(t, other, replaced[1].Changes)
	assert.Equal(t, changes, entries[1].Changes, "input untouched")
}

func TestEncodeDecode(t *testing.T) {
	data, err := Encode([]Entry{{Month: "2025-03", UpdatedAt: "2025-03-04", Changes: []Change{
		{Code: "A&B", Name: "<x>", Field: "총보수", Before: nil, After: ptr(0.5)},
	}}})
	require.NoError(t, err)
	s := string(data)
	assert.True(t, strings.HasSuffix(s, "]\n"))
	assert.Contains(t, s, `"code": "A&B"`)
	assert.Contains(t, s, `"name": "<x>"`)
	assert.Contains(t, s, `"before": null`)

	back, err := Decode(strings.NewReader(s))
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Nil(t, back[0].Changes[0].Before)

	_, err = Decode(strings.NewReader(`{"month":"x"}`))
	assert.ErrorIs(t, err, record.ErrNotArray)

	empty, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(empty))
}

func TestWriteIfChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changelog.json")
	entries := []Entry{{Month: "2025-03", UpdatedAt: "2025-03-04", Changes: []Change{}}}

	changed, err := WriteIfChanged(path, entries)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = WriteIfChanged(path, entries)
	require.NoError(t, err)
	assert.False(t, changed)

	got, ok := ReadFile(path)
	assert.True(t, ok)
	assert.Equal(t, entries, got)

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	got, ok = ReadFile(path)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestCandidateURLs(t *testing.T) {
	got := CandidateURLs([]string{" https://a/changelog.json ", "", DefaultURLs[1]}, "https://a/changelog.json")
	assert.Equal(t, []string{"https://a/changelog.json", DefaultURLs[1], DefaultURLs[0]}, got)
}

func TestFetchFirst(t *testing.T) {
	var ua string
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer bad.Close()
	object := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer object.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.UserAgent()
		_, _ = w.Write([]byte(`[{"month":"2024-06","updatedAt":"2024-06-02","changes":[]}]`))
	}))
	defer good.Close()

	f := Fetcher{Timeout: time.Second}
	entries, from, err := f.FetchFirst(context.Background(), []string{bad.URL, object.URL, good.URL})
	require.NoError(t, err)
	assert.Equal(t, good.URL, from)
	assert.Equal(t, userAgent, ua)
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-06-02", entries[0].UpdatedAt)

	_, _, err = f.FetchFirst(context.Background(), []string{bad.URL, object.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	_, _, err = f.FetchFirst(context.Background(), nil)
	assert.Error(t, err)
}
