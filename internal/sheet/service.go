package sheet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"etfsave.life/web/internal/record"
)

// Columns of the management sheet, zero-based (B, D and E).
const (
	manageCodeCol     = 1
	manageStdCodeCol  = 3
	manageFundNameCol = 4
)

// ErrEmptySheet is returned when a sheet that must carry a header row has none.
var ErrEmptySheet = errors.New("sheet is empty")

// ManageUpdate patches one management row. Empty fields are left untouched.
type ManageUpdate struct {
	Code     string
	StdCode  string
	FundName string
}

// Service implements the spreadsheet operations on top of a Store.
type Service struct {
	store *Store
}

// NewService wraps store.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// ReplaceResult rewrites the result sheet: a header row from the first object's keys,
// then one row per object. The whole grid is written at once.
func (s *Service) ReplaceResult(ctx context.Context, rows []record.Record) error {
	var grid Grid
	if len(rows) > 0 {
		headers := rows[0].Keys()
		grid = make(Grid, 0, len(rows)+1)
		head := make([]any, len(headers))
		for i, h := range headers {
			head[i] = h
		}
		grid = append(grid, head)
		for _, row := range rows {
			line := make([]any, len(headers))
			for i, h := range headers {
				line[i], _ = row.Get(h)
			}
			grid = append(grid, line)
		}
	}
	if err := s.store.SetValues(ctx, ResultSheet, grid); err != nil {
		return fmt.Errorf("replace result sheet: %w", err)
	}
	return nil
}

// UpdateManage patches management rows whose trimmed code matches an update. When two
// updates share a code the later one wins. Blank codes match nothing on either side.
// It returns the number of updates received.
func (s *Service) UpdateManage(ctx context.Context, updates []ManageUpdate) (int, error) {
	grid, err := s.store.Values(ctx, ManageSheet)
	if err != nil {
		return 0, err
	}
	if len(grid) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptySheet, ManageSheet)
	}
	byCode := make(map[string]ManageUpdate, len(updates))
	for _, u := range updates {
		if code := strings.TrimSpace(u.Code); code != "" {
			byCode[code] = u
		}
	}
	for i := 1; i < len(grid); i++ {
		row := grid[i]
		if len(row) <= manageCodeCol {
			continue
		}
		code := strings.TrimSpace(record.Stringify(row[manageCodeCol]))
		if code == "" {
			continue
		}
		u, ok := byCode[code]
		if !ok {
			continue
		}
		if u.StdCode != "" {
			row = setCell(row, manageStdCodeCol, u.StdCode)
		}
		if u.FundName != "" {
			row = setCell(row, manageFundNameCol, u.FundName)
		}
		grid[i] = row
	}
	if err := s.store.SetValues(ctx, ManageSheet, grid); err != nil {
		return 0, fmt.Errorf("write manage sheet: %w", err)
	}
	return len(updates), nil
}

func setCell(row []any, col int, v any) []any {
	for len(row) <= col {
		row = append(row, nil)
	}
	row[col] = v
	return row
}

// Objects converts a sheet into objects keyed by its header row.
func (s *Service) Objects(ctx context.Context, sheet string) ([]record.Record, error) {
	grid, err := s.store.Values(ctx, sheet)
	if err != nil {
		return nil, err
	}
	out := []record.Record{}
	if len(grid) == 0 {
		return out, nil
	}
	headers := grid[0]
	for _, line := range grid[1:] {
		var rec record.Record
		for i, h := range headers {
			var v any
			if i < len(line) {
				v = line[i]
			}
			rec.Set(record.Stringify(h), v)
		}
		out = append(out, rec)
	}
	return out, nil
}
