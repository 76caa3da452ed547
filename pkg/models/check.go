package models

import (
	"fmt"

	"github.com/smith-xyz/golang-check-elider/pkg/ir"
)

// Check is a conditional branch guarding an error-reporting path.
type Check struct {
	ID       string      `json:"id"`
	Branch   ir.ValueID  `json:"branch"`
	Function string      `json:"function"`
	Location ir.Location `json:"location"`
	// AbortingCall names the error-reporting function on the error path,
	// when one could be identified.
	AbortingCall string `json:"aborting_call,omitempty"`
}

// CheckID builds the identifier of the check guarded by branch.
func CheckID(function string, branch ir.ValueID) string {
	return fmt.Sprintf("%s#%d", function, branch)
}

// CostEntry pairs a check with its dynamic execution cost.
type CostEntry struct {
	Check Check  `json:"check"`
	Cost  uint64 `json:"cost"`
}
