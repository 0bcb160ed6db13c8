package fees

import (
	"sync"
	"time"

	"etfsave.life/web/internal/record"
)

// Dataset is one fetched set of fee rows together with everything derived from it.
// It is immutable once built.
type Dataset struct {
	Rows       []record.Record
	Keys       Keys
	Categories []string
	UpdatedAt  string
	LoadedAt   time.Time
}

// NewDataset resolves keys from the first row and derives the category set.
func NewDataset(rows []record.Record, updatedAt string, loadedAt time.Time) *Dataset {
	var sample record.Record
	if len(rows) > 0 {
		sample = rows[0]
	}
	keys := ResolveKeys(sample)
	return &Dataset{
		Rows:       rows,
		Keys:       keys,
		Categories: Categories(rows, keys),
		UpdatedAt:  updatedAt,
		LoadedAt:   loadedAt,
	}
}

// Tab is a category filter button.
type Tab struct {
	Category string
	All      bool
	Active   bool
}

// View is everything a page needs to draw the fee table for one selection.
type View struct {
	Selection Selection
	Loaded    bool
	Tabs      []Tab
	Rows      []DisplayRow
	Total     int
	UpdatedAt string
	LoadedAt  time.Time
}

// Empty reports whether data is loaded but nothing matches the selection.
func (v View) Empty() bool { return v.Loaded && len(v.Rows) == 0 }

// Board owns the current data set. Replacing it is atomic; a failed load simply
// never calls Replace, so readers keep seeing the previous set.
type Board struct {
	mu  sync.RWMutex
	ds  *Dataset
	now func() time.Time
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{now: time.Now}
}

// Replace installs rows as the current data set.
func (b *Board) Replace(rows []record.Record, updatedAt string) *Dataset {
	ds := NewDataset(rows, updatedAt, b.now().UTC())
	b.mu.Lock()
	b.ds = ds
	b.mu.Unlock()
	return ds
}

// Snapshot returns the current data set, if any.
func (b *Board) Snapshot() (*Dataset, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ds, b.ds != nil
}

// View filters, sorts and renders the current data set for sel.
func (b *Board) View(sel Selection) View {
	ds, ok := b.Snapshot()
	if !ok {
		return View{Selection: sel}
	}
	return ds.View(sel)
}

// View filters, sorts and renders the data set for sel.
func (ds *Dataset) View(sel Selection) View {
	sel = sel.Normalize(ds.Categories)
	visible := SortByRealCost(Filter(ds.Rows, ds.Keys, sel.Category), ds.Keys)
	v := View{
		Selection: sel,
		Loaded:    true,
		Rows:      Render(visible, ds.Keys),
		Total:     len(ds.Rows),
		UpdatedAt: ds.UpdatedAt,
		LoadedAt:  ds.LoadedAt,
	}
	if !sel.Fixed {
		v.Tabs = make([]Tab, 0, len(ds.Categories)+1)
		v.Tabs = append(v.Tabs, Tab{Category: AllCategory, All: true, Active: sel.Category == AllCategory})
		for _, c := range ds.Categories {
			v.Tabs = append(v.Tabs, Tab{Category: c, Active: c == sel.Category})
		}
	}
	return v
}
