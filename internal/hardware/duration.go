package hardware

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Duration is a non-negative time span in nanoseconds. It is written as a
// string with a unit ("100 ns") and read back from the same form.
type Duration uint64

var durationUnits = []struct {
	suffix string
	ns     float64
}{
	{"ns", 1},
	{"µs", 1e3},
	{"us", 1e3},
	{"ms", 1e6},
	{"s", 1e9},
}

// ParseDuration reads "100 ns", "1.5 µs", "2us", "1 ms", "3 s" or a bare
// number of nanoseconds.
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	value, scale := s, 1.0
	for _, u := range durationUnits {
		if strings.HasSuffix(s, u.suffix) {
			value, scale = strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), u.ns
			break
		}
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return Duration(f*scale + 0.5), nil
}

// Nanoseconds returns d as a float for formula evaluation.
func (d Duration) Nanoseconds() float64 {
	return float64(d)
}

func (d Duration) String() string {
	return strconv.FormatUint(uint64(d), 10) + " ns"
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n uint64
		if nerr := json.Unmarshal(data, &n); nerr != nil {
			return fmt.Errorf("duration must be a string or a number of nanoseconds: %w", err)
		}
		*d = Duration(n)
		return nil
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
