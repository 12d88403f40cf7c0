package linker

import (
	"fmt"
	"strings"
)

// Required config keys, in validation order.
const (
	KeySourceTableID         = "source_table_id"
	KeyTargetTableID         = "target_table_id"
	KeySourceMatchField      = "source_table_match_field"
	KeyTargetMatchField      = "target_table_match_field"
	KeyTargetPrimaryKeyField = "target_table_primary_key_field"
	KeySourceReferenceField  = "source_table_reference_field"
)

// LinkConfig identifies one linking task between a source and a target table.
type LinkConfig struct {
	// Name is an optional label used in logs and results.
	Name string `yaml:"name"`

	SourceTableID         string `yaml:"source_table_id"`
	TargetTableID         string `yaml:"target_table_id"`
	SourceMatchField      string `yaml:"source_table_match_field"`
	TargetMatchField      string `yaml:"target_table_match_field"`
	TargetPrimaryKeyField string `yaml:"target_table_primary_key_field"`
	SourceReferenceField  string `yaml:"source_table_reference_field"`
}

// ID returns the config's label, defaulting to "<source>-><target>".
func (c LinkConfig) ID() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return fmt.Sprintf("%s->%s", strings.TrimSpace(c.SourceTableID), strings.TrimSpace(c.TargetTableID))
}

// Validate checks that all six required keys are set and names the first missing one.
func (c LinkConfig) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{KeySourceTableID, c.SourceTableID},
		{KeyTargetTableID, c.TargetTableID},
		{KeySourceMatchField, c.SourceMatchField},
		{KeyTargetMatchField, c.TargetMatchField},
		{KeyTargetPrimaryKeyField, c.TargetPrimaryKeyField},
		{KeySourceReferenceField, c.SourceReferenceField},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ConfigurationError{Key: r.key}
		}
	}
	return nil
}
