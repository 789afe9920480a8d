package reconcile

// Action records what the reconciler did with one trigger.
type Action string

const (
	// ActionUnchanged means the installed DDL already matched; no DDL
	// was issued. A run where every trigger is unchanged performs zero
	// catalog writes.
	ActionUnchanged Action = "unchanged"

	// ActionCreated means no trigger of that name existed.
	ActionCreated Action = "created"

	// ActionReplaced means an installed trigger's text differed and it
	// was dropped and recreated.
	ActionReplaced Action = "replaced"
)

// Entry is the outcome for one trigger.
type Entry struct {
	Table   string `json:"table"`
	Trigger string `json:"trigger"`
	Type    string `json:"type"` // event type, e.g. "post.created"
	Action  Action `json:"action"`
}

// Report is the outcome of one reconciliation run.
type Report struct {
	RunToken string  `json:"run_token"`
	DryRun   bool    `json:"dry_run,omitempty"`
	Entries  []Entry `json:"entries"`
}

// Count returns how many entries carry the given action.
func (r *Report) Count(action Action) int {
	n := 0
	for _, e := range r.Entries {
		if e.Action == action {
			n++
		}
	}
	return n
}
