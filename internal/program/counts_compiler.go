package program

import (
	"bytes"
	"context"
	"fmt"

	"gopkg.in/yaml.v3"
)

// CountsCompiler reads LogicalCounts written out as JSON or YAML.
type CountsCompiler struct{}

func (CountsCompiler) Name() string { return "counts" }

func (CountsCompiler) Extensions() []string {
	return []string{".json", ".yaml", ".yml"}
}

func (CountsCompiler) Compile(_ context.Context, src Source) (LogicalCounts, error) {
	if len(bytes.TrimSpace(src.Content)) == 0 {
		return LogicalCounts{}, invalid("%s: empty counts document", src.Name)
	}
	var counts LogicalCounts
	dec := yaml.NewDecoder(bytes.NewReader(src.Content))
	dec.KnownFields(true)
	if err := dec.Decode(&counts); err != nil {
		return LogicalCounts{}, fmt.Errorf("parse %s: %w", src.Name, err)
	}
	if err := counts.Validate(); err != nil {
		return LogicalCounts{}, err
	}
	return counts, nil
}
