// Package formula compiles and evaluates the numeric expressions used by QEC
// schemes and distillation units. Expressions are CEL over double-typed
// variables; integer literals are widened to doubles before compilation so
// that "2 * codeDistance" type-checks.
package formula

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/cel-go/cel"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Variable names available to every formula.
const (
	CodeDistance                 = "codeDistance"
	OneQubitMeasurementTime      = "oneQubitMeasurementTime"
	OneQubitGateTime             = "oneQubitGateTime"
	TwoQubitGateTime             = "twoQubitGateTime"
	TGateTime                    = "tGateTime"
	OneQubitMeasurementErrorRate = "oneQubitMeasurementErrorRate"
	OneQubitGateErrorRate        = "oneQubitGateErrorRate"
	TwoQubitGateErrorRate        = "twoQubitGateErrorRate"
	TGateErrorRate               = "tGateErrorRate"
	IdleErrorRate                = "idleErrorRate"
	InputErrorRate               = "inputErrorRate"
	CliffordErrorRate            = "cliffordErrorRate"
)

var variables = []string{
	CodeDistance,
	OneQubitMeasurementTime,
	OneQubitGateTime,
	TwoQubitGateTime,
	TGateTime,
	OneQubitMeasurementErrorRate,
	OneQubitGateErrorRate,
	TwoQubitGateErrorRate,
	TGateErrorRate,
	IdleErrorRate,
	InputErrorRate,
	CliffordErrorRate,
}

// Variables returns the sorted names a formula may reference.
func Variables() []string {
	out := append([]string(nil), variables...)
	sort.Strings(out)
	return out
}

const cacheSize = 256

var (
	envOnce sync.Once
	env     *cel.Env
	envErr  error

	cache     *lru.Cache[string, *Formula]
	hits      atomic.Uint64
	misses    atomic.Uint64
	cacheOnce sync.Once
)

func environment() (*cel.Env, error) {
	envOnce.Do(func() {
		opts := make([]cel.EnvOption, 0, len(variables))
		for _, name := range variables {
			opts = append(opts, cel.Variable(name, cel.DoubleType))
		}
		env, envErr = cel.NewEnv(opts...)
	})
	return env, envErr
}

func programCache() *lru.Cache[string, *Formula] {
	cacheOnce.Do(func() {
		// lru.New only fails for a non-positive size.
		cache, _ = lru.New[string, *Formula](cacheSize)
	})
	return cache
}

// CacheStats reports compiled formula cache hits and misses since start.
func CacheStats() (hit, miss uint64) {
	return hits.Load(), misses.Load()
}

// Formula is a compiled numeric expression. It is immutable and safe for
// concurrent evaluation.
type Formula struct {
	// Original is the expression as written by the user.
	Original string

	program    cel.Program
	references []string
}

// Vars binds variable names to values for a single evaluation.
type Vars map[string]float64

// Compile parses, type-checks and plans expr. Identical expressions share a
// compiled program.
func Compile(expr string) (*Formula, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty formula")
	}
	c := programCache()
	if f, ok := c.Get(expr); ok {
		hits.Add(1)
		return f, nil
	}
	misses.Add(1)

	e, err := environment()
	if err != nil {
		return nil, fmt.Errorf("create formula environment: %w", err)
	}
	ast, iss := e.Compile(normalizeNumericLiterals(expr))
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.DoubleType) {
		return nil, fmt.Errorf("compile %q: result type is %s, want double", expr, ast.OutputType())
	}
	prg, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("plan %q: %w", expr, err)
	}

	f := &Formula{Original: expr, program: prg, references: referencedVariables(expr)}
	c.Add(expr, f)
	return f, nil
}

// MustCompile is Compile for built-in expressions known to be valid.
func MustCompile(expr string) *Formula {
	f, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return f
}

// References lists the variables the expression mentions, sorted.
func (f *Formula) References() []string {
	return append([]string(nil), f.references...)
}

// Eval evaluates the formula. Every referenced variable must be bound and the
// result must be finite.
func (f *Formula) Eval(vars Vars) (float64, error) {
	activation := make(map[string]any, len(f.references))
	for _, name := range f.references {
		v, ok := vars[name]
		if !ok {
			return 0, fmt.Errorf("eval %q: variable %s is not bound", f.Original, name)
		}
		activation[name] = v
	}
	out, _, err := f.program.Eval(activation)
	if err != nil {
		return 0, fmt.Errorf("eval %q: %w", f.Original, err)
	}
	v, ok := out.Value().(float64)
	if !ok {
		return 0, fmt.Errorf("eval %q: unexpected result %T", f.Original, out.Value())
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("eval %q: result is not finite", f.Original)
	}
	return v, nil
}

func (f *Formula) String() string {
	if f == nil {
		return ""
	}
	return f.Original
}

func (f *Formula) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

func (f *Formula) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	compiled, err := Compile(s)
	if err != nil {
		return err
	}
	*f = *compiled
	return nil
}

func (f *Formula) MarshalYAML() (any, error) {
	return f.String(), nil
}

// normalizeNumericLiterals rewrites integer literals as double literals.
// Digits that are part of an identifier, a fraction or an exponent are left
// alone, as are hex and unsigned literals.
func normalizeNumericLiterals(expr string) string {
	var b strings.Builder
	b.Grow(len(expr) + 8)
	n := len(expr)
	for i := 0; i < n; {
		c := expr[i]
		if c == '"' || c == '\'' {
			j := i + 1
			for j < n && expr[j] != c {
				if expr[j] == '\\' {
					j++
				}
				j++
			}
			if j < n {
				j++
			}
			b.WriteString(expr[i:min(j, n)])
			i = j
			continue
		}
		if !isDigit(c) || (i > 0 && (isIdentChar(expr[i-1]) || expr[i-1] == '.')) {
			b.WriteByte(c)
			i++
			continue
		}
		if c == '0' && i+1 < n && (expr[i+1] == 'x' || expr[i+1] == 'X') {
			j := i + 2
			for j < n && isIdentChar(expr[j]) {
				j++
			}
			b.WriteString(expr[i:j])
			i = j
			continue
		}
		j := i
		for j < n && isDigit(expr[j]) {
			j++
		}
		isDouble := false
		if j < n && expr[j] == '.' {
			isDouble = true
			j++
			for j < n && isDigit(expr[j]) {
				j++
			}
		}
		if j < n && (expr[j] == 'e' || expr[j] == 'E') {
			isDouble = true
			j++
			if j < n && (expr[j] == '+' || expr[j] == '-') {
				j++
			}
			for j < n && isDigit(expr[j]) {
				j++
			}
		}
		b.WriteString(expr[i:j])
		if !isDouble && (j >= n || (expr[j] != 'u' && expr[j] != 'U')) {
			b.WriteString(".0")
		}
		i = j
	}
	return b.String()
}

func referencedVariables(expr string) []string {
	var refs []string
	for _, name := range Variables() {
		if containsIdent(expr, name) {
			refs = append(refs, name)
		}
	}
	return refs
}

func containsIdent(expr, name string) bool {
	for start := 0; ; {
		idx := strings.Index(expr[start:], name)
		if idx < 0 {
			return false
		}
		i := start + idx
		end := i + len(name)
		before := i == 0 || !isIdentChar(expr[i-1])
		after := end >= len(expr) || !isIdentChar(expr[end])
		if before && after {
			return true
		}
		start = i + 1
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentChar(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
