package handlers

import (
	"net/url"

	"etfsave.life/web/internal/fees"
)

// Table states drive which placeholder the fragment shows.
const (
	TableLoading = "loading"
	TableError   = "error"
	TableEmpty   = "empty"
	TableReady   = "ready"
)

// TableData is the view model of the fee table fragment.
type TableData struct {
	fees.View
	// Failed is set when no data has loaded and the last attempt errored.
	Failed bool
	// BasePath is the page the table belongs to; "/" for the home page.
	BasePath string
}

// NewTableData wraps v. failed only matters while nothing is loaded.
func NewTableData(v fees.View, failed bool, basePath string) *TableData {
	if basePath == "" {
		basePath = "/"
	}
	return &TableData{View: v, Failed: failed && !v.Loaded, BasePath: basePath}
}

// State is one of TableLoading, TableError, TableEmpty or TableReady.
func (d TableData) State() string {
	switch {
	case d.Failed:
		return TableError
	case !d.Loaded:
		return TableLoading
	case len(d.Rows) == 0:
		return TableEmpty
	default:
		return TableReady
	}
}

// PageHref is the address pushed to the history for category.
func (d TableData) PageHref(category string) string {
	return d.BasePath + "?" + url.Values{"category": {category}}.Encode()
}

// FragmentHref is the address tab buttons fetch the table fragment from.
func (d TableData) FragmentHref(category string) string {
	return "/table?" + url.Values{"category": {category}}.Encode()
}
