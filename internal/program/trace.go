package program

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TraceCompiler counts operations in a line-oriented gate trace:
//
//	qubits 3
//	h 0
//	t 1
//	rz 0.1 2
//	ccz 0 1 2
//	m 0
//
// Lines starting with '#' or '//' are comments. Clifford gates are accepted
// and ignored. Rotations by multiples of pi/4 are folded into T or Clifford
// operations. The rotation depth is the number of rotation layers when every
// operation is scheduled as early as its qubits allow.
type TraceCompiler struct{}

func (TraceCompiler) Name() string { return "trace" }

func (TraceCompiler) Extensions() []string {
	return []string{".trace", ".qtrace"}
}

const angleTolerance = 1e-9

var cliffordOps = map[string]int{
	"i": 1, "id": 1, "x": 1, "y": 1, "z": 1, "h": 1, "s": 1, "sdg": 1, "sx": 1,
	"reset": 1,
	"cx":    2, "cnot": 2, "cy": 2, "cz": 2, "swap": 2,
}

func (TraceCompiler) Compile(ctx context.Context, src Source) (LogicalCounts, error) {
	t := &traceState{layer: make(map[int64]int64), highest: -1}
	sc := bufio.NewScanner(bytes.NewReader(src.Content))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return LogicalCounts{}, err
			}
		}
		line := stripComment(sc.Text())
		if line == "" {
			continue
		}
		if err := t.apply(strings.Fields(line)); err != nil {
			return LogicalCounts{}, invalid("%s:%d: %v", src.Name, lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return LogicalCounts{}, fmt.Errorf("read %s: %w", src.Name, err)
	}

	counts := t.counts
	counts.NumQubits = max(t.declared, t.highest+1)
	counts.RotationDepth = t.rotationDepth
	if err := counts.Validate(); err != nil {
		return LogicalCounts{}, err
	}
	return counts, nil
}

type traceState struct {
	counts        LogicalCounts
	declared      int64
	highest       int64
	layer         map[int64]int64
	rotationDepth int64
}

func (t *traceState) apply(fields []string) error {
	op := strings.ToLower(fields[0])
	args := fields[1:]

	if op == "qubits" {
		if len(args) != 1 {
			return fmt.Errorf("qubits takes one argument")
		}
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid qubit count %q", args[0])
		}
		t.declared = max(t.declared, n)
		return nil
	}

	if arity, ok := cliffordOps[op]; ok {
		qs, err := t.qubits(op, args, arity)
		if err != nil {
			return err
		}
		t.sync(qs)
		return nil
	}

	switch op {
	case "t", "tdg", "t_adj":
		if _, err := t.qubits(op, args, 1); err != nil {
			return err
		}
		t.counts.TCount++
	case "ccz", "ccix", "ccx", "ccnot", "toffoli":
		qs, err := t.qubits(op, args, 3)
		if err != nil {
			return err
		}
		if op == "ccz" {
			t.counts.CCZCount++
		} else {
			t.counts.CCIXCount++
		}
		t.sync(qs)
	case "m", "mz", "measure", "mresetz":
		if _, err := t.qubits(op, args, 1); err != nil {
			return err
		}
		t.counts.MeasurementCount++
	case "rz", "rx", "ry", "r1":
		if len(args) != 2 {
			return fmt.Errorf("%s takes an angle and a qubit", op)
		}
		theta, err := parseAngle(args[0])
		if err != nil {
			return err
		}
		qs, err := t.qubits(op, args[1:], 1)
		if err != nil {
			return err
		}
		t.rotation(theta, qs[0])
	default:
		return fmt.Errorf("unknown operation %q", fields[0])
	}
	return nil
}

func (t *traceState) rotation(theta float64, q int64) {
	quarter := theta / (math.Pi / 4)
	nearest := math.Round(quarter)
	if math.Abs(quarter-nearest) < angleTolerance {
		if int64(nearest)%2 != 0 {
			t.counts.TCount++
		}
		return
	}
	t.counts.RotationCount++
	t.layer[q]++
	t.rotationDepth = max(t.rotationDepth, t.layer[q])
}

// sync aligns the rotation layers of qubits touched by a multi-qubit gate.
func (t *traceState) sync(qs []int64) {
	if len(qs) < 2 {
		return
	}
	var top int64
	for _, q := range qs {
		top = max(top, t.layer[q])
	}
	for _, q := range qs {
		t.layer[q] = top
	}
}

func (t *traceState) qubits(op string, args []string, arity int) ([]int64, error) {
	if len(args) != arity {
		return nil, fmt.Errorf("%s takes %d qubit(s), got %d", op, arity, len(args))
	}
	qs := make([]int64, len(args))
	for i, a := range args {
		q, err := parseQubit(a)
		if err != nil {
			return nil, err
		}
		for _, prev := range qs[:i] {
			if prev == q {
				return nil, fmt.Errorf("%s uses qubit %d twice", op, q)
			}
		}
		qs[i] = q
		t.highest = max(t.highest, q)
	}
	return qs, nil
}

// parseQubit accepts "3", "q3" and "q[3]".
func parseQubit(s string) (int64, error) {
	digits := strings.TrimRight(strings.TrimLeft(s, "qQ["), "]")
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid qubit %q", s)
	}
	return n, nil
}

// parseAngle accepts a float in radians or a multiple of pi such as "pi/8",
// "-3*pi/4" or "2pi".
func parseAngle(s string) (float64, error) {
	lower := strings.ToLower(s)
	if !strings.Contains(lower, "pi") {
		v, err := strconv.ParseFloat(lower, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("invalid angle %q", s)
		}
		return v, nil
	}
	num, den, _ := strings.Cut(lower, "/")
	num = strings.TrimSuffix(strings.TrimSuffix(num, "pi"), "*")
	coef := 1.0
	switch num {
	case "", "+":
	case "-":
		coef = -1
	default:
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid angle %q", s)
		}
		coef = v
	}
	divisor := 1.0
	if den != "" {
		v, err := strconv.ParseFloat(den, 64)
		if err != nil || v == 0 {
			return 0, fmt.Errorf("invalid angle %q", s)
		}
		divisor = v
	}
	return coef * math.Pi / divisor, nil
}

func stripComment(line string) string {
	if i := strings.Index(line, "#"); i >= 0 {
		line = line[:i]
	}
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}
