package linkconfig

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jimwitte/baserow-record-linker/internal/linker"
)

// fileEntry is one link in a YAML links file. Entries are active unless active: false.
type fileEntry struct {
	linker.LinkConfig `yaml:",inline"`

	Active *bool `yaml:"active"`
}

type linksFile struct {
	Links []fileEntry `yaml:"links"`
}

// FromFile reads link configs from a YAML file.
//
// Example:
//
//	links:
//	  - name: people-to-companies
//	    source_table_id: 101
//	    target_table_id: 102
//	    source_table_match_field: Company Name
//	    target_table_match_field: Name
//	    target_table_primary_key_field: Name
//	    source_table_reference_field: Company
func FromFile(path string) ([]linker.LinkConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &linker.ConfigurationError{Key: "LINKS_FILE", Message: "open links file " + path, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()
	return Parse(f)
}

// Parse decodes a YAML links document, dropping inactive entries.
func Parse(r io.Reader) ([]linker.LinkConfig, error) {
	var doc linksFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &linker.ConfigurationError{Key: "LINKS_FILE", Message: "parse links YAML", Err: err}
	}

	out := make([]linker.LinkConfig, 0, len(doc.Links))
	for i, e := range doc.Links {
		if e.Active != nil && !*e.Active {
			continue
		}
		if e.LinkConfig == (linker.LinkConfig{}) {
			return nil, &linker.ConfigurationError{Key: "links", Message: fmt.Sprintf("link %d is empty", i+1)}
		}
		out = append(out, e.LinkConfig)
	}
	return out, nil
}
