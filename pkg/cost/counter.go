package cost

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/tools/cover"

	"github.com/smith-xyz/golang-check-elider/pkg/ir"
)

// Counter reports how often the code at a location executed.
type Counter interface {
	Count(loc ir.Location) uint64
}

// UniformCounter counts every location once, which turns dynamic cost into a
// static instruction-cost sum.
type UniformCounter struct{}

func (UniformCounter) Count(ir.Location) uint64 { return 1 }

// CoverageCounter answers counts from a Go coverage profile written with
// -covermode=count or -covermode=atomic.
type CoverageCounter struct {
	profiles []*cover.Profile
}

// LoadCoverProfile parses a coverage profile file.
func LoadCoverProfile(path string) (*CoverageCounter, error) {
	profiles, err := cover.ParseProfiles(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse coverage profile %s: %w", path, err)
	}
	for _, p := range profiles {
		if p.Mode == "set" {
			return nil, fmt.Errorf("coverage profile %s uses set mode; execution counts need -covermode=count", path)
		}
	}
	return &CoverageCounter{profiles: profiles}, nil
}

// NewCoverageCounter wraps already parsed profiles.
func NewCoverageCounter(profiles []*cover.Profile) *CoverageCounter {
	return &CoverageCounter{profiles: profiles}
}

// Count returns the count of the innermost profile block covering loc, or 0
// when no block covers it. Profile file names are import paths, so they are
// matched against the location by path suffix.
func (c *CoverageCounter) Count(loc ir.Location) uint64 {
	if !loc.IsValid() {
		return 0
	}
	file := filepath.ToSlash(loc.File)
	for _, p := range c.profiles {
		if !sameFile(p.FileName, file) {
			continue
		}
		var best *cover.ProfileBlock
		for i := range p.Blocks {
			b := &p.Blocks[i]
			if !covers(b, loc) {
				continue
			}
			if best == nil || b.StartLine > best.StartLine ||
				(b.StartLine == best.StartLine && b.StartCol > best.StartCol) {
				best = b
			}
		}
		if best != nil {
			return uint64(best.Count)
		}
	}
	return 0
}

func sameFile(profileName, file string) bool {
	return strings.HasSuffix(file, profileName) || strings.HasSuffix(profileName, file) ||
		(filepath.Base(profileName) == filepath.Base(file) && strings.HasSuffix(filepath.Dir(file), filepath.Base(filepath.Dir(profileName))))
}

func covers(b *cover.ProfileBlock, loc ir.Location) bool {
	col := loc.Column
	if col == 0 {
		col = 1
	}
	if loc.Line < b.StartLine || loc.Line > b.EndLine {
		return false
	}
	if loc.Line == b.StartLine && col < b.StartCol {
		return false
	}
	if loc.Line == b.EndLine && col > b.EndCol {
		return false
	}
	return true
}
