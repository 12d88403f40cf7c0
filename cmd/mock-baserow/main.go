package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/jimwitte/baserow-record-linker/pkg/mockbaserow"
)

func main() {
	addr := defaultString("MOCK_BASEROW_ADDR", ":8080")
	fixture := defaultString("MOCK_BASEROW_FIXTURE", "")
	token := defaultString("MOCK_BASEROW_TOKEN", "")

	fs := flag.NewFlagSet("mock-baserow", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&fixture, "fixture", fixture, "YAML fixture of tables, fields and rows to serve")
	fs.StringVar(&token, "token", token, "Require this API token (also supports env: MOCK_BASEROW_TOKEN)")
	_ = fs.Parse(os.Args[1:])

	srv := mockbaserow.New()
	if token != "" {
		srv.RequireToken(token)
	}
	if fixture != "" {
		if err := loadFixture(srv, fixture); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "fixture error: %v\n", err)
			os.Exit(2)
		}
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-baserow listening on %s (tables=%s)\n", addr, strings.Join(srv.TableIDs(), ","))
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func loadFixture(srv *mockbaserow.Server, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	return srv.LoadFixture(f)
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
