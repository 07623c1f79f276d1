package ws

import "fmt"

// VerifyGoldenPath checks that the canonical golden-path sequence appears in
// order within events. Extra events between stages are allowed. The returned
// error names the first missing stage and dumps the kinds actually seen, so
// CI output points at the break without re-running the suite.
func VerifyGoldenPath(events []Event) error {
	return VerifySequence(events, GoldenPath)
}

// VerifySequence checks that want appears as an ordered subsequence of the
// event kinds in events.
func VerifySequence(events []Event, want []EventKind) error {
	idx := 0
	for _, e := range events {
		if idx < len(want) && e.Kind == want[idx] {
			idx++
		}
	}
	if idx < len(want) {
		return fmt.Errorf("ws: golden path broken at stage %d (%s): saw %v", idx+1, want[idx], Kinds(events))
	}
	return nil
}
