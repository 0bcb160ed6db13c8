package handlers

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etfsave.life/web/internal/changelog"
	"etfsave.life/web/internal/config"
	"etfsave.life/web/internal/fees"
)

func ptr(f float64) *float64 { return &f }

func TestTableDataState(t *testing.T) {
	assert.Equal(t, TableLoading, NewTableData(fees.View{}, false, "").State())
	assert.Equal(t, TableError, NewTableData(fees.View{}, true, "").State())
	assert.Equal(t, TableEmpty, NewTableData(fees.View{Loaded: true}, true, "").State(), "errors after a load keep showing data")
	ready := NewTableData(fees.View{Loaded: true, Rows: []fees.DisplayRow{{Code: "069500"}}}, false, "")
	assert.Equal(t, TableReady, ready.State())
}

func TestTableDataHrefs(t *testing.T) {
	d := NewTableData(fees.View{}, false, "")
	assert.Equal(t, "/?category=%ED%95%B4%EC%99%B8+%EC%A3%BC%EC%8B%9D", d.PageHref("해외 주식"))
	assert.Equal(t, "/table?category=%2A", d.FragmentHref(fees.AllCategory))
}

func TestLanguageOptionsKeepQuery(t *testing.T) {
	opts := LanguageOptions([]string{"ko", "en"}, "en", "/", url.Values{"category": {"국내주식"}, "lang": {"ko"}})
	require.Len(t, opts, 2)
	assert.False(t, opts[0].Active)
	assert.True(t, opts[1].Active)
	assert.Contains(t, opts[1].Href, "lang=en")
	assert.Contains(t, opts[1].Href, "category=")
	assert.Equal(t, 1, strings.Count(opts[1].Href, "lang="))
	assert.NotEmpty(t, opts[0].Label)
	assert.Equal(t, "xx-invalid-tag!", NativeName("xx-invalid-tag!"))
}

func TestBuildChangelog(t *testing.T) {
	d := BuildChangelog([]changelog.Entry{{
		Month:     "2025-02",
		UpdatedAt: "2025-02-11",
		Changes: []changelog.Change{
			{Code: "069500", Name: "KODEX 200", Field: "총보수", Before: ptr(0.15), After: ptr(0.05)},
			{Code: "069500", Name: "KODEX 200", Field: "실부담비용", After: ptr(0.2)},
		},
	}})
	require.Len(t, d.Groups, 1)
	g := d.Groups[0]
	assert.Equal(t, "2025/02/11", g.UpdatedAt)
	require.Len(t, g.Changes, 2)
	assert.Equal(t, ChangeRow{Code: "069500", Name: "KODEX 200", FieldKey: "table_fee", Before: "0.1500%", After: "0.0500%", Direction: "down"}, g.Changes[0])
	assert.Equal(t, "-", g.Changes[1].Before)
	assert.Empty(t, g.Changes[1].Direction)
	assert.False(t, d.Empty())
	assert.True(t, BuildChangelog(nil).Empty())
}

func TestAnalyticsFrom(t *testing.T) {
	a := AnalyticsFrom(config.AnalyticsConfig{GA4MeasurementID: "G-TEST"})
	assert.True(t, a.Enabled())
	assert.False(t, Analytics{}.Enabled())
}
