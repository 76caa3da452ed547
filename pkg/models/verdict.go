package models

// Verdict is the safety classification of a check.
type Verdict int

const (
	Unsafe Verdict = iota
	Safe
)

func (v Verdict) String() string {
	if v == Safe {
		return "Safe"
	}
	return "Unsafe"
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Classification is the cached result of classifying one check.
type Classification struct {
	Verdict Verdict           `json:"verdict"`
	Site    *MemoryAccessSite `json:"site,omitempty"`
	Reason  string            `json:"reason"`
	// Matches holds the attack-graph labels returned by the oracle.
	Matches []string `json:"matches,omitempty"`
}

// Reasons recorded on classifications.
const (
	ReasonNoSite        = "no indexed memory access on the regular branch"
	ReasonNotStack      = "accessed memory is not stack-local"
	ReasonExploitRecord = "exploit record found in attack graph"
	ReasonNoExploit     = "stack-local access with no exploit record"
	ReasonDisabled      = "classification disabled"
)
