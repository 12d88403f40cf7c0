package mockbaserow

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jimwitte/baserow-record-linker/pkg/baserow"
)

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
	Query  string
}

// TableID extracts the table id from a fields or rows endpoint path, or "".
func (c Call) TableID() string {
	for _, prefix := range []string{"/api/database/fields/table/", "/api/database/rows/table/"} {
		if rest, ok := strings.CutPrefix(c.Path, prefix); ok {
			return strings.Split(rest, "/")[0]
		}
	}
	return ""
}

// Server implements the subset of the Baserow REST API used by the linker, in memory.
type Server struct {
	mu    sync.Mutex
	calls []Call

	expectedAuthorization string

	tables map[string]*table
	faults []fault
}

type table struct {
	fields []baserow.Field
	rows   []*storedRow
	nextID int64
}

type storedRow struct {
	id     int64
	fields map[string]any
}

type fault struct {
	method string
	prefix string
	status int
}

// New constructs an empty mock server.
func New() *Server {
	return &Server{tables: make(map[string]*table)}
}

// RequireToken enforces that requests carry "Authorization: Token <token>".
// If token is empty, authorization is not enforced.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token = strings.TrimSpace(token)
	if token == "" {
		s.expectedAuthorization = ""
		return
	}
	s.expectedAuthorization = "Token " + token
}

// CreateTable registers a table with the given fields, replacing any existing one.
// Field ids are assigned when zero.
func (s *Server) CreateTable(tableID string, fields ...baserow.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fs := make([]baserow.Field, len(fields))
	for i, f := range fields {
		if f.ID == 0 {
			f.ID = int64(i + 1)
		}
		if f.Type == "" {
			f.Type = "text"
		}
		fs[i] = f
	}
	s.tables[tableID] = &table{fields: fs, nextID: 1}
}

// AddRow appends a row to a table and returns its id. It panics if the table is unknown.
func (s *Server) AddRow(tableID string, fields map[string]any) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableID]
	if !ok {
		panic(fmt.Sprintf("mockbaserow: unknown table %q", tableID))
	}
	id := t.nextID
	t.nextID++
	t.rows = append(t.rows, &storedRow{id: id, fields: copyFields(fields)})
	return id
}

// Row returns a copy of a stored row's fields.
func (s *Server) Row(tableID string, rowID int64) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableID]
	if !ok {
		return nil, false
	}
	for _, r := range t.rows {
		if r.id == rowID {
			return copyFields(r.fields), true
		}
	}
	return nil, false
}

// FailRequests makes every request whose method matches and whose path starts with
// pathPrefix fail with the given status. An empty method matches any method.
func (s *Server) FailRequests(method, pathPrefix string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{method: method, prefix: pathPrefix, status: status})
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsForTable returns the calls that addressed tableID.
func (s *Server) CallsForTable(tableID string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.TableID() == tableID {
			out = append(out, c)
		}
	}
	return out
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/database/fields/table/", s.handleFields)
	mux.HandleFunc("/api/database/rows/table/", s.handleRows)
	return mux
}

func (s *Server) begin(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery})
	expected := s.expectedAuthorization
	faults := append([]fault(nil), s.faults...)
	s.mu.Unlock()

	if expected != "" && r.Header.Get("Authorization") != expected {
		writeError(w, http.StatusUnauthorized, "ERROR_INVALID_TOKEN", "The provided token is invalid.")
		return false
	}
	for _, f := range faults {
		if (f.method == "" || f.method == r.Method) && strings.HasPrefix(r.URL.Path, f.prefix) {
			writeError(w, f.status, "ERROR_INJECTED", "injected failure")
			return false
		}
	}
	return true
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r) {
		return
	}
	// /api/database/fields/table/{id}/
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/database/fields/table/"), "/")
	if rest == "" || strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	t, ok := s.tables[rest]
	var fields []baserow.Field
	if ok {
		fields = append(fields, t.fields...)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "ERROR_TABLE_DOES_NOT_EXIST", "The requested table does not exist.")
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, r) {
		return
	}
	// /api/database/rows/table/{id}/
	// /api/database/rows/table/{id}/{row}/
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/database/rows/table/"), "/")
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.listRows(w, r, parts[0])
	case len(parts) == 2:
		if r.Method != http.MethodPatch {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rowID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			http.Error(w, "invalid row id", http.StatusBadRequest)
			return
		}
		s.updateRow(w, r, parts[0], rowID)
	default:
		http.NotFound(w, r)
	}
}

type rowFilter struct {
	field string
	typ   string
	value string
}

func parseFilters(q map[string][]string) ([]rowFilter, error) {
	var out []rowFilter
	for k, vals := range q {
		rest, ok := strings.CutPrefix(k, "filter__")
		if !ok {
			continue
		}
		i := strings.LastIndex(rest, "__")
		if i <= 0 {
			return nil, fmt.Errorf("malformed filter %q", k)
		}
		for _, v := range vals {
			out = append(out, rowFilter{field: rest[:i], typ: rest[i+2:], value: v})
		}
	}
	return out, nil
}

func (s *Server) listRows(w http.ResponseWriter, r *http.Request, tableID string) {
	q := r.URL.Query()
	filters, err := parseFilters(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ERROR_FILTER_FIELD_NOT_FOUND", err.Error())
		return
	}
	page := atoiDefault(q.Get("page"), 1)
	size := atoiDefault(q.Get("size"), 100)
	if page < 1 || size < 1 {
		writeError(w, http.StatusBadRequest, "ERROR_REQUEST_BODY_VALIDATION", "page and size must be positive")
		return
	}

	s.mu.Lock()
	t, ok := s.tables[tableID]
	var matched []map[string]any
	if ok {
		for _, row := range t.rows {
			if matchesAll(row.fields, filters) {
				obj := copyFields(row.fields)
				obj["id"] = row.id
				matched = append(matched, obj)
			}
		}
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "ERROR_TABLE_DOES_NOT_EXIST", "The requested table does not exist.")
		return
	}

	start := (page - 1) * size
	if start > len(matched) {
		writeError(w, http.StatusNotFound, "ERROR_INVALID_PAGE", "Invalid page.")
		return
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}

	var next *string
	if end < len(matched) {
		nq := r.URL.Query()
		nq.Set("page", strconv.Itoa(page+1))
		u := "http://" + r.Host + r.URL.Path + "?" + nq.Encode()
		next = &u
	}
	results := matched[start:end]
	if results == nil {
		results = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(matched),
		"next":     next,
		"previous": nil,
		"results":  results,
	})
}

func (s *Server) updateRow(w http.ResponseWriter, r *http.Request, tableID string, rowID int64) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	var patch map[string]any
	if err := json.Unmarshal(b, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "ERROR_REQUEST_BODY_VALIDATION", "body must be a JSON object")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableID]
	if !ok {
		writeError(w, http.StatusNotFound, "ERROR_TABLE_DOES_NOT_EXIST", "The requested table does not exist.")
		return
	}
	known := make(map[string]bool, len(t.fields))
	for _, f := range t.fields {
		known[f.Name] = true
	}
	for k := range patch {
		if !known[k] {
			writeError(w, http.StatusBadRequest, "ERROR_REQUEST_BODY_VALIDATION", fmt.Sprintf("unknown field %q", k))
			return
		}
	}
	for _, row := range t.rows {
		if row.id != rowID {
			continue
		}
		for k, v := range patch {
			row.fields[k] = v
		}
		obj := copyFields(row.fields)
		obj["id"] = row.id
		writeJSON(w, http.StatusOK, obj)
		return
	}
	writeError(w, http.StatusNotFound, "ERROR_ROW_DOES_NOT_EXIST", fmt.Sprintf("The row %d does not exist.", rowID))
}

func matchesAll(fields map[string]any, filters []rowFilter) bool {
	for _, f := range filters {
		if !matches(fields[f.field], f) {
			return false
		}
	}
	return true
}

func matches(v any, f rowFilter) bool {
	switch f.typ {
	case baserow.FilterEmpty:
		return isEmpty(v)
	case "not_empty":
		return !isEmpty(v)
	case baserow.FilterBoolean:
		want, err := strconv.ParseBool(strings.TrimSpace(f.value))
		if err != nil {
			want = strings.EqualFold(strings.TrimSpace(f.value), "1")
		}
		got, _ := v.(bool)
		return got == want
	case baserow.FilterEqual:
		if v == nil {
			return f.value == ""
		}
		return fmt.Sprint(v) == f.value
	default:
		return false
	}
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case bool:
		return !x
	default:
		return false
	}
}

// Fixture is the YAML shape accepted by LoadFixture.
//
//	tables:
//	  - id: "101"
//	    fields:
//	      - {name: Name, primary: true}
//	      - {name: Company}
//	    rows:
//	      - {Name: Alice, Company: ""}
type Fixture struct {
	Tables []FixtureTable `yaml:"tables"`
}

// FixtureTable seeds one table.
type FixtureTable struct {
	ID     string           `yaml:"id"`
	Fields []baserow.Field  `yaml:"fields"`
	Rows   []map[string]any `yaml:"rows"`
}

// LoadFixture seeds the server from a YAML fixture.
func (s *Server) LoadFixture(r io.Reader) error {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&fx); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse fixture YAML: %w", err)
	}
	for _, t := range fx.Tables {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return fmt.Errorf("fixture table missing id")
		}
		s.CreateTable(id, t.Fields...)
		for _, row := range t.Rows {
			s.AddRow(id, row)
		}
	}
	return nil
}

// TableIDs lists the registered table ids in sorted order.
func (s *Server) TableIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tables))
	for id := range s.tables {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func atoiDefault(s string, fallback int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]any{"error": code, "detail": detail})
}
