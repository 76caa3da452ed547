// Package cost ranks checks by dynamic cost and computes those costs from a
// per-instruction cost table and observed execution counts.
package cost

import (
	"sort"

	"github.com/smith-xyz/golang-check-elider/pkg/models"
)

// Catalog is an immutable ranking of checks by descending cost.
type Catalog struct {
	ranked    []models.CostEntry
	totalCost uint64
}

// NewCatalog ranks a copy of entries. Ties keep their input order.
func NewCatalog(entries []models.CostEntry) *Catalog {
	ranked := make([]models.CostEntry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Cost > ranked[j].Cost
	})

	var total uint64
	for _, e := range ranked {
		total += e.Cost
	}
	return &Catalog{ranked: ranked, totalCost: total}
}

// Rank returns the checks in descending cost order.
func (c *Catalog) Rank() []models.CostEntry {
	return c.ranked
}

func (c *Catalog) TotalCost() uint64 { return c.totalCost }

func (c *Catalog) TotalCount() int { return len(c.ranked) }
