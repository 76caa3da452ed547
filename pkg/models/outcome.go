package models

// CheckState is the terminal state of a check after an engine run.
type CheckState int

const (
	StateKept CheckState = iota
	StateRewired
)

func (s CheckState) String() string {
	if s == StateRewired {
		return "rewired"
	}
	return "kept"
}

func (s CheckState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Counter accumulates removed checks and their cost.
type Counter struct {
	Checks int    `json:"checks"`
	Cost   uint64 `json:"cost"`
}

// Add records one removed check of the given cost.
func (c *Counter) Add(cost uint64) {
	c.Checks++
	c.Cost += cost
}

// Merge returns the sum of two counters.
func (c Counter) Merge(other Counter) Counter {
	return Counter{Checks: c.Checks + other.Checks, Cost: c.Cost + other.Cost}
}

// RemovedCheck records one check whose branch was rewired.
type RemovedCheck struct {
	Check   Check   `json:"check"`
	Cost    uint64  `json:"cost"`
	Verdict Verdict `json:"verdict"`
	// RegularBranch is the successor index the branch now always takes.
	RegularBranch int `json:"regular_branch"`
}

// ElisionOutcome aggregates one engine run.
type ElisionOutcome struct {
	ProgramID   string  `json:"program_id"`
	TotalChecks int     `json:"total_checks"`
	TotalCost   uint64  `json:"total_cost"`
	Simulated   Counter `json:"simulated"`
	SafeRemoved Counter `json:"safe_removed"`
	// UnsafeRemoved counts checks removed under the budget.
	UnsafeRemoved Counter        `json:"unsafe_removed"`
	Removed       Counter        `json:"removed"`
	Ineligible    int            `json:"ineligible"`
	RemovedChecks []RemovedCheck `json:"removed_checks"`
	// States maps every check id to its terminal state.
	States map[string]CheckState `json:"states"`
}
