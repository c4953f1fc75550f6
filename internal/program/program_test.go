package program

import (
	"context"
	"strings"
	"testing"

	"github.com/efebarandurmaz/qre/internal/errs"
)

func TestLogicalCountsValidate(t *testing.T) {
	tests := []struct {
		name    string
		counts  LogicalCounts
		wantErr bool
	}{
		{"valid", LogicalCounts{NumQubits: 10, TCount: 5, RotationCount: 4, RotationDepth: 2}, false},
		{"clifford only", LogicalCounts{NumQubits: 1}, false},
		{"zero qubits", LogicalCounts{}, true},
		{"negative t", LogicalCounts{NumQubits: 1, TCount: -1}, true},
		{"depth exceeds count", LogicalCounts{NumQubits: 1, RotationCount: 1, RotationDepth: 2}, true},
		{"rotations without depth", LogicalCounts{NumQubits: 1, RotationCount: 3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.counts.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errs.Is(err, errs.KindInvalidLogicalCounts) {
				t.Errorf("error kind = %q, want %q", errs.KindOf(err), errs.KindInvalidLogicalCounts)
			}
		})
	}
}

func TestCountsCompiler(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		content string
		want    LogicalCounts
		wantErr bool
	}{
		{
			name:    "json",
			content: `{"numQubits": 10, "tCount": 100, "rotationCount": 20, "rotationDepth": 5}`,
			want:    LogicalCounts{NumQubits: 10, TCount: 100, RotationCount: 20, RotationDepth: 5},
		},
		{
			name:    "yaml",
			content: "numQubits: 4\ncczCount: 2\nmeasurementCount: 4\n",
			want:    LogicalCounts{NumQubits: 4, CCZCount: 2, MeasurementCount: 4},
		},
		{name: "unknown field", content: `{"numQubits": 1, "gates": 3}`, wantErr: true},
		{name: "empty", content: "  ", wantErr: true},
		{name: "invalid counts", content: `{"numQubits": 0}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CountsCompiler{}.Compile(ctx, Source{Name: "in.json", Content: []byte(tt.content)})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Compile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Compile() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTraceCompiler(t *testing.T) {
	trace := `
# small program
qubits 4
h 0
t 0
tdg 1
rz 0.1 0
rz 0.2 1
cx 0 1        // syncs layers of 0 and 1
rx 0.3 1
rz pi/4 2     # folded into a T gate
rz pi/2 2     # Clifford
ry -3*pi/8 3
ccz 0 1 2
ccx 1 2 3
m 0
mz 1
`
	got, err := TraceCompiler{}.Compile(context.Background(), Source{Name: "prog.trace", Content: []byte(trace)})
	if err != nil {
		t.Fatal(err)
	}
	want := LogicalCounts{
		NumQubits:        4,
		TCount:           3,
		RotationCount:    4,
		RotationDepth:    2,
		CCZCount:         1,
		CCIXCount:        1,
		MeasurementCount: 2,
	}
	if got != want {
		t.Errorf("Compile() = %+v\nwant %+v", got, want)
	}
}

func TestTraceCompilerInfersQubits(t *testing.T) {
	got, err := TraceCompiler{}.Compile(context.Background(), Source{Name: "t", Content: []byte("t q[6]\n")})
	if err != nil {
		t.Fatal(err)
	}
	if got.NumQubits != 7 || got.TCount != 1 {
		t.Errorf("Compile() = %+v, want 7 qubits and 1 T gate", got)
	}
}

func TestTraceCompilerErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"unknown op", "foo 1", "unknown operation"},
		{"bad arity", "cx 1", "takes 2 qubit"},
		{"bad angle", "rz abc 0", "invalid angle"},
		{"repeated qubit", "ccz 1 1 2", "twice"},
		{"empty", "# nothing\n", "numQubits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TraceCompiler{}.Compile(context.Background(), Source{Name: "t", Content: []byte(tt.content)})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
			if !errs.Is(err, errs.KindInvalidLogicalCounts) {
				t.Errorf("error kind = %q, want InvalidLogicalCounts", errs.KindOf(err))
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	if got := r.Names(); len(got) != 2 || got[0] != "counts" || got[1] != "trace" {
		t.Errorf("Names() = %v", got)
	}

	c, err := r.ForSource("algo.trace")
	if err != nil || c.Name() != "trace" {
		t.Errorf("ForSource(.trace) = %v, %v", c, err)
	}
	c, err = r.ForSource("-")
	if err != nil || c.Name() != "counts" {
		t.Errorf("ForSource(-) = %v, %v", c, err)
	}
	if _, err := r.Compiler("qir"); err == nil {
		t.Error("expected error for unknown compiler")
	}

	counts, err := r.Compile(context.Background(), "trace", Source{Name: "-", Content: []byte("t 0\n")})
	if err != nil {
		t.Fatal(err)
	}
	if counts.TCount != 1 {
		t.Errorf("TCount = %d, want 1", counts.TCount)
	}
}

func TestReadSourceStdin(t *testing.T) {
	src, err := ReadSource("-", strings.NewReader(`{"numQubits": 2}`))
	if err != nil {
		t.Fatal(err)
	}
	if src.Name != "-" || string(src.Content) != `{"numQubits": 2}` {
		t.Errorf("ReadSource(-) = %+v", src)
	}
}
