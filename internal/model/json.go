package model

import "encoding/json"

// Result times are plain nanosecond counts on the wire. Only the formatted
// view and the echoed qubit parameters carry unit strings.

func (p PhysicalCounts) MarshalJSON() ([]byte, error) {
	type fields PhysicalCounts
	return json.Marshal(struct {
		fields
		Runtime uint64 `json:"runtime"`
	}{fields(p), uint64(p.Runtime)})
}

func (t TFactory) MarshalJSON() ([]byte, error) {
	type fields TFactory
	perRound := make([]uint64, len(t.RuntimePerRound))
	for i, d := range t.RuntimePerRound {
		perRound[i] = uint64(d)
	}
	return json.Marshal(struct {
		fields
		Runtime         uint64   `json:"runtime"`
		RuntimePerRound []uint64 `json:"runtimePerRound"`
	}{fields(t), uint64(t.Runtime), perRound})
}
