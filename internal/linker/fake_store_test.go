package linker_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/jimwitte/baserow-record-linker/pkg/baserow"
)

type rowWrite struct {
	TableID string
	RowID   int64
	Fields  map[string]any
}

// fakeStore is an in-memory table service that records every call.
type fakeStore struct {
	mu sync.Mutex

	tables  map[string][]baserow.Row
	primary map[string]string

	getErr   map[string]error
	listErr  map[string]error
	writeErr map[int64]error

	reads  []string
	writes []rowWrite
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables:   make(map[string][]baserow.Row),
		primary:  make(map[string]string),
		getErr:   make(map[string]error),
		listErr:  make(map[string]error),
		writeErr: make(map[int64]error),
	}
}

func (s *fakeStore) addTable(id, primary string, rows ...map[string]any) {
	s.primary[id] = primary
	for i, fields := range rows {
		s.tables[id] = append(s.tables[id], baserow.Row{ID: int64(i + 1), Fields: fields})
	}
	if _, ok := s.tables[id]; !ok {
		s.tables[id] = nil
	}
}

func (s *fakeStore) GetTable(_ context.Context, tableID string) (baserow.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, "getTable:"+tableID)
	if err := s.getErr[tableID]; err != nil {
		return baserow.Table{}, err
	}
	if _, ok := s.tables[tableID]; !ok {
		return baserow.Table{}, fmt.Errorf("table %s does not exist", tableID)
	}
	return baserow.Table{
		ID:     tableID,
		Fields: []baserow.Field{{Name: s.primary[tableID], Primary: true}},
	}, nil
}

func (s *fakeStore) ListRows(_ context.Context, tableID string, filters ...baserow.Filter) ([]baserow.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, "listRows:"+tableID)
	if err := s.listErr[tableID]; err != nil {
		return nil, err
	}
	var out []baserow.Row
	for _, row := range s.tables[tableID] {
		if matchesFilters(row, filters) {
			out = append(out, copyRow(row))
		}
	}
	return out, nil
}

func (s *fakeStore) WriteRow(_ context.Context, tableID string, rowID int64, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr[rowID]; err != nil {
		return err
	}
	s.writes = append(s.writes, rowWrite{TableID: tableID, RowID: rowID, Fields: fields})
	for i, row := range s.tables[tableID] {
		if row.ID != rowID {
			continue
		}
		for k, v := range fields {
			s.tables[tableID][i].Fields[k] = v
		}
		return nil
	}
	return fmt.Errorf("row %d does not exist", rowID)
}

func (s *fakeStore) readsOf(tableID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.reads {
		if r == "getTable:"+tableID || r == "listRows:"+tableID {
			out = append(out, r)
		}
	}
	return out
}

func (s *fakeStore) field(tableID string, rowID int64, name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.tables[tableID] {
		if row.ID == rowID {
			return row.Fields[name]
		}
	}
	return nil
}

func matchesFilters(row baserow.Row, filters []baserow.Filter) bool {
	for _, f := range filters {
		v := row.Fields[f.Field]
		switch f.Type {
		case baserow.FilterEmpty:
			if v != nil && v != "" {
				return false
			}
		default:
			if fmt.Sprint(v) != f.Value {
				return false
			}
		}
	}
	return true
}

func copyRow(row baserow.Row) baserow.Row {
	fields := make(map[string]any, len(row.Fields))
	for k, v := range row.Fields {
		fields[k] = v
	}
	return baserow.Row{ID: row.ID, Fields: fields}
}
