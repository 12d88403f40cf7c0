package redact_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jimwitte/baserow-record-linker/pkg/redact"
)

func TestSecrets(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "token header", in: "Authorization: Token abc123", want: "Authorization: Token <redacted>"},
		{name: "bearer header", in: "got Bearer eyJhbGciOi.x.y from proxy", want: "got Bearer <redacted> from proxy"},
		{name: "kv", in: "BASEROW_API_TOKEN=supersecret rest", want: "<redacted_kv> rest"},
		{name: "plain", in: "  table 12 not found ", want: "table 12 not found"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, redact.Secrets(tc.in))
		})
	}
}
