package integration

// Outcome is the result class of one processed item
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Action describes what a sync did to the remote record
type Action string

const (
	ActionNone    Action = "none"
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionLinked  Action = "linked"
)

// ItemResult is the per-item entry of a batch
type ItemResult struct {
	ID       string  `json:"id"`
	Outcome  Outcome `json:"outcome"`
	Action   Action  `json:"action,omitempty"`
	RemoteID string  `json:"remote_id,omitempty"`
	Message  string  `json:"message,omitempty"`
	Err      error   `json:"-"`
}

// BatchResult aggregates the outcomes of a sequential batch. A failed item
// never prevents the following items from running.
type BatchResult struct {
	SuccessCount int          `json:"success_count"`
	ErrorCount   int          `json:"error_count"`
	SkippedCount int          `json:"skipped_count"`
	Items        []ItemResult `json:"items"`
	// Aborted explains why the batch stopped before its last item
	Aborted string `json:"aborted,omitempty"`
}

// Add records one item and updates the counters
func (r *BatchResult) Add(item ItemResult) {
	switch item.Outcome {
	case OutcomeSucceeded:
		r.SuccessCount++
	case OutcomeSkipped:
		r.SkippedCount++
	default:
		item.Outcome = OutcomeFailed
		r.ErrorCount++
	}
	r.Items = append(r.Items, item)
}

// Total returns the number of processed items
func (r *BatchResult) Total() int {
	return len(r.Items)
}

// CountAction returns how many succeeded items performed action
func (r *BatchResult) CountAction(action Action) int {
	n := 0
	for _, item := range r.Items {
		if item.Outcome == OutcomeSucceeded && item.Action == action {
			n++
		}
	}
	return n
}
