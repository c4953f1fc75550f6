package program

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Source is a program description handed to a Compiler.
type Source struct {
	// Name is the file path or "-" for standard input.
	Name    string
	Content []byte
}

// Compiler derives LogicalCounts from a program description.
type Compiler interface {
	// Name identifies the compiler, for example "counts".
	Name() string
	// Extensions lists file extensions (with dot) the compiler handles.
	Extensions() []string
	Compile(ctx context.Context, src Source) (LogicalCounts, error)
}

// Registry stores available compilers keyed by name and extension.
type Registry struct {
	mu         sync.RWMutex
	byName     map[string]Compiler
	byExt      map[string]Compiler
	defaultKey string
}

// NewRegistry creates an empty compiler registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Compiler),
		byExt:  make(map[string]Compiler),
	}
}

// DefaultRegistry returns a registry with the built-in compilers. The counts
// compiler handles unknown extensions.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(CountsCompiler{})
	r.Register(TraceCompiler{})
	r.defaultKey = CountsCompiler{}.Name()
	return r
}

func (r *Registry) Register(c Compiler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[c.Name()] = c
	for _, ext := range c.Extensions() {
		r.byExt[strings.ToLower(ext)] = c
	}
}

func (r *Registry) Compiler(name string) (Compiler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("no compiler named %q", name)
	}
	return c, nil
}

// ForSource picks the compiler for a file by its extension.
func (r *Registry) ForSource(name string) (Compiler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byExt[strings.ToLower(filepath.Ext(name))]; ok {
		return c, nil
	}
	if c, ok := r.byName[r.defaultKey]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("no compiler for source %q", name)
}

// Names lists registered compiler names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ReadSource reads a file, or stdin when path is "-".
func ReadSource(path string, stdin io.Reader) (Source, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return Source{}, fmt.Errorf("read stdin: %w", err)
		}
		return Source{Name: "-", Content: data}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Source{Name: path, Content: data}, nil
}

// Compile resolves a compiler (by name, or by the source's extension when name
// is empty) and runs it.
func (r *Registry) Compile(ctx context.Context, name string, src Source) (LogicalCounts, error) {
	var (
		c   Compiler
		err error
	)
	if name != "" {
		c, err = r.Compiler(name)
	} else {
		c, err = r.ForSource(src.Name)
	}
	if err != nil {
		return LogicalCounts{}, err
	}
	counts, err := c.Compile(ctx, src)
	if err != nil {
		return LogicalCounts{}, fmt.Errorf("%s compiler: %w", c.Name(), err)
	}
	return counts, nil
}
