package metrics

import "sort"

// ErrorHistogram counts failures by their error text. A histogram belongs to
// one worker until it is handed to the controller for merging.
type ErrorHistogram map[string]int

// ErrorCount is one row of a sorted histogram.
type ErrorCount struct {
	Message string `json:"message" yaml:"message"`
	Count   int    `json:"count" yaml:"count"`
}

// Record adds one occurrence of err. Nil errors are ignored.
func (h ErrorHistogram) Record(err error) {
	if err == nil {
		return
	}
	h[err.Error()]++
}

// Merge folds other into h.
func (h ErrorHistogram) Merge(other ErrorHistogram) {
	for msg, n := range other {
		h[msg] += n
	}
}

// Sorted returns the rows ordered by descending count, then by message.
func (h ErrorHistogram) Sorted() []ErrorCount {
	rows := make([]ErrorCount, 0, len(h))
	for msg, n := range h {
		rows = append(rows, ErrorCount{Message: msg, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Message < rows[j].Message
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
