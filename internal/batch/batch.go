// Package batch accumulates per-item outcomes of the sequential batch jobs
// (splitting, mirroring, feature extraction, anonymization) so that a run
// can skip bad inputs and still report what happened.
package batch

import (
	"fmt"
	"log"
)

// Outcome is how one item ended.
type Outcome int

const (
	// Succeeded means every output of the item was written.
	Succeeded Outcome = iota
	// Skipped means the input could not be used (missing, undecodable).
	Skipped
	// Failed means the input was read but producing an output failed.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Item is the record of one processed input.
type Item struct {
	Split   string
	Label   string
	Source  string
	Outputs []string
	Outcome Outcome
	Err     error
}

// Counts tallies items by outcome.
type Counts struct {
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Total returns the number of items counted.
func (c Counts) Total() int {
	return c.Succeeded + c.Skipped + c.Failed
}

// Summary collects the items of a run. The zero value is ready to use.
type Summary struct {
	Items  []Item
	counts Counts

	// OnItem, when set, is called for every added item.
	OnItem func(Item)
}

// Add records item and logs it when it did not succeed.
func (s *Summary) Add(item Item) {
	s.Items = append(s.Items, item)

	switch item.Outcome {
	case Succeeded:
		s.counts.Succeeded++
	case Skipped:
		s.counts.Skipped++
		log.Printf("skipping %s: %v", item.Source, item.Err)
	case Failed:
		s.counts.Failed++
		log.Printf("failed %s: %v", item.Source, item.Err)
	}

	if s.OnItem != nil {
		s.OnItem(item)
	}
}

// Succeed records a successful item.
func (s *Summary) Succeed(split, label, source string, outputs ...string) {
	s.Add(Item{Split: split, Label: label, Source: source, Outputs: outputs, Outcome: Succeeded})
}

// Skip records an input that could not be used.
func (s *Summary) Skip(split, label, source string, err error) {
	s.Add(Item{Split: split, Label: label, Source: source, Outcome: Skipped, Err: err})
}

// Fail records an item whose outputs could not be produced.
func (s *Summary) Fail(split, label, source string, err error) {
	s.Add(Item{Split: split, Label: label, Source: source, Outcome: Failed, Err: err})
}

// Merge appends the items of other without calling OnItem again.
func (s *Summary) Merge(other *Summary) {
	s.Items = append(s.Items, other.Items...)
	s.counts.Succeeded += other.counts.Succeeded
	s.counts.Skipped += other.counts.Skipped
	s.counts.Failed += other.counts.Failed
}

// Counts returns the current tally.
func (s *Summary) Counts() Counts {
	return s.counts
}

// Outputs returns every output path written, in order.
func (s *Summary) Outputs() []string {
	var out []string
	for _, it := range s.Items {
		out = append(out, it.Outputs...)
	}
	return out
}

// Problems returns the items that did not succeed.
func (s *Summary) Problems() []Item {
	var out []Item
	for _, it := range s.Items {
		if it.Outcome != Succeeded {
			out = append(out, it)
		}
	}
	return out
}

func (s *Summary) String() string {
	return fmt.Sprintf("%d succeeded, %d skipped, %d failed",
		s.counts.Succeeded, s.counts.Skipped, s.counts.Failed)
}
