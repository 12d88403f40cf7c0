package linker

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize turns a raw match value into its matching key: surrounding white space is
// trimmed and the text is lower-cased. Both source and target values go through it, so
// case and white space differences between tables never block a link.
//
// Values that are not text fail with ErrNotText.
func Normalize(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: got %T", ErrNotText, value)
	}
	// A Caser is stateful; build one per call rather than sharing it.
	return cases.Lower(language.Und).String(strings.TrimSpace(s)), nil
}

// isFalsy reports whether a field value counts as "no value" for indexing.
func isFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case json.Number:
		f, err := x.Float64()
		return err == nil && f == 0
	case float64:
		return x == 0
	case int:
		return x == 0
	case int64:
		return x == 0
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	default:
		return false
	}
}
