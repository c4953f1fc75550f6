package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/efebarandurmaz/qre/internal/model"
)

// Entry is a report entry paired with its rendered value.
type Entry struct {
	model.ReportEntry
	Value string
}

// Section is a report group with rendered values.
type Section struct {
	Title         string
	AlwaysVisible bool
	Entries       []Entry
}

// Resolve pairs every report entry of r with the value found at its path.
func Resolve(r model.Result) ([]Section, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	sections := make([]Section, 0, len(r.ReportData.Groups))
	for _, g := range r.ReportData.Groups {
		s := Section{Title: g.Title, AlwaysVisible: g.AlwaysVisible}
		for _, e := range g.Entries {
			s.Entries = append(s.Entries, Entry{ReportEntry: e, Value: render(lookup(doc, e.Path))})
		}
		sections = append(sections, s)
	}
	return sections, nil
}

func lookup(doc map[string]any, path string) any {
	var cur any = doc
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

func render(v any) string {
	switch x := v.(type) {
	case nil:
		return NotApplicable
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return fmt.Sprint(x)
	case []any:
		return join(x, render)
	default:
		data, _ := json.Marshal(x)
		return string(data)
	}
}
