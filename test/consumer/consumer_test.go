package consumer

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/jimwitte/baserow-record-linker/pkg/baserow"
	"github.com/jimwitte/baserow-record-linker/pkg/mockbaserow"
	"github.com/jimwitte/baserow-record-linker/pkg/redact"
)

func TestPublicPackagesCompile(t *testing.T) {
	t.Parallel()

	srv := mockbaserow.New()
	srv.CreateTable("1", baserow.Field{Name: "Name", Primary: true})
	rowID := srv.AddRow("1", map[string]any{"Name": "x"})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client, err := baserow.NewClient(ts.URL, "tok", "")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if err := client.WriteRow(context.Background(), "1", rowID, map[string]any{"Name": "y"}); err != nil {
		t.Fatalf("WriteRow failed: %v", err)
	}
	if got := redact.Secrets("Authorization: Token abc"); got != "Authorization: Token <redacted>" {
		t.Fatalf("unexpected redaction: %q", got)
	}
}
