package baserow_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jimwitte/baserow-record-linker/pkg/baserow"
	"github.com/jimwitte/baserow-record-linker/pkg/mockbaserow"
)

func newTestClient(t *testing.T, srv *mockbaserow.Server, opts ...baserow.Option) *baserow.Client {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := baserow.NewClient(ts.URL, "test-token", "", opts...)
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresURLAndToken(t *testing.T) {
	t.Parallel()

	_, err := baserow.NewClient("", "tok", "")
	require.Error(t, err)

	_, err = baserow.NewClient("https://api.baserow.io", "  ", "")
	require.Error(t, err)

	_, err = baserow.NewClient("api.baserow.io", "tok", "")
	require.NoError(t, err)
}

func TestGetTable_PrimaryField(t *testing.T) {
	t.Parallel()

	srv := mockbaserow.New()
	srv.RequireToken("test-token")
	srv.CreateTable("7",
		baserow.Field{Name: "Notes"},
		baserow.Field{Name: "Name", Primary: true},
	)
	client := newTestClient(t, srv)

	tbl, err := client.GetTable(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "7", tbl.ID)
	assert.Equal(t, "Name", tbl.PrimaryField())
	assert.Len(t, tbl.Fields, 2)
}

func TestGetTable_NotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, mockbaserow.New())

	_, err := client.GetTable(context.Background(), "404")
	require.Error(t, err)
	assert.True(t, baserow.IsNotFound(err))
	assert.Contains(t, err.Error(), "error=ERROR_TABLE_DOES_NOT_EXIST")
}

func TestGetTable_WrongTokenIsRejected(t *testing.T) {
	t.Parallel()

	srv := mockbaserow.New()
	srv.RequireToken("other-token")
	srv.CreateTable("1", baserow.Field{Name: "Name", Primary: true})
	client := newTestClient(t, srv)

	_, err := client.GetTable(context.Background(), "1")
	require.Error(t, err)

	var he *baserow.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.StatusCode)
	assert.NotContains(t, err.Error(), "test-token")
}

func TestListRows_PaginatesAndFilters(t *testing.T) {
	t.Parallel()

	srv := mockbaserow.New()
	srv.CreateTable("3", baserow.Field{Name: "Name", Primary: true}, baserow.Field{Name: "Link"})
	for i := 0; i < 5; i++ {
		srv.AddRow("3", map[string]any{"Name": "row", "Link": ""})
	}
	srv.AddRow("3", map[string]any{"Name": "linked", "Link": "x"})

	client := newTestClient(t, srv, baserow.WithPageSize(2))

	all, err := client.ListRows(context.Background(), "3")
	require.NoError(t, err)
	assert.Len(t, all, 6)
	assert.Equal(t, int64(1), all[0].ID)
	v, ok := all[5].Get("Name")
	require.True(t, ok)
	assert.Equal(t, "linked", v)

	empty, err := client.ListRows(context.Background(), "3", baserow.Filter{Field: "Link", Type: baserow.FilterEmpty})
	require.NoError(t, err)
	assert.Len(t, empty, 5)

	calls := srv.CallsForTable("3")
	require.NotEmpty(t, calls)
	last, err := url.ParseQuery(calls[len(calls)-1].Query)
	require.NoError(t, err)
	assert.Equal(t, "true", last.Get("user_field_names"))
	assert.Equal(t, "AND", last.Get("filter_type"))
	_, hasFilter := last["filter__Link__empty"]
	assert.True(t, hasFilter)
}

func TestWriteRow_PatchesFields(t *testing.T) {
	t.Parallel()

	srv := mockbaserow.New()
	srv.CreateTable("9", baserow.Field{Name: "Name", Primary: true}, baserow.Field{Name: "Company"})
	id := srv.AddRow("9", map[string]any{"Name": "Alice", "Company": ""})
	client := newTestClient(t, srv, baserow.WithWriteRateLimit(1000))

	require.NoError(t, client.WriteRow(context.Background(), "9", id, map[string]any{"Company": "Acme"}))

	row, ok := srv.Row("9", id)
	require.True(t, ok)
	assert.Equal(t, "Acme", row["Company"])
}

func TestWriteRow_MissingRow(t *testing.T) {
	t.Parallel()

	srv := mockbaserow.New()
	srv.CreateTable("9", baserow.Field{Name: "Name", Primary: true})
	client := newTestClient(t, srv)

	err := client.WriteRow(context.Background(), "9", 42, map[string]any{"Name": "x"})
	require.Error(t, err)
	assert.True(t, baserow.IsNotFound(err))
	assert.Contains(t, err.Error(), "op=updateRow")
}

func TestHTTPError_NonEnvelopeBodyIsRedacted(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream rejected Token abcdef", http.StatusBadGateway)
	}))
	defer ts.Close()

	client, err := baserow.NewClient(ts.URL, "abcdef", "")
	require.NoError(t, err)

	_, err = client.GetTable(context.Background(), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Token <redacted>")
	assert.NotContains(t, err.Error(), "abcdef")
}
