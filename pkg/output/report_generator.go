package output

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/smith-xyz/golang-check-elider/pkg/models"
	"github.com/smith-xyz/golang-check-elider/pkg/utils"
	"github.com/smith-xyz/golang-check-elider/pkg/version"
)

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// CreationInfo identifies the run that produced a report.
type CreationInfo struct {
	Created     string `json:"created"`
	ToolName    string `json:"tool_name"`
	ToolVersion string `json:"tool_version"`
}

// Report is the result of one elision run over one or more programs.
type Report struct {
	ReportVersion string                   `json:"report_version"`
	CreationInfo  CreationInfo             `json:"creation_info"`
	Budget        string                   `json:"budget"`
	Programs      []*models.ElisionOutcome `json:"programs"`
}

// NewReport wraps the outcomes of a run.
func NewReport(budget string, outcomes []*models.ElisionOutcome) *Report {
	return &Report{
		ReportVersion: "0.1.0",
		CreationInfo: CreationInfo{
			Created:     strconv.FormatInt(time.Now().Unix(), 10),
			ToolName:    "golang-check-elider",
			ToolVersion: version.GetVersion(),
		},
		Budget:   budget,
		Programs: outcomes,
	}
}

// ReportGenerator writes reports as text or JSON.
type ReportGenerator struct {
	logger       *slog.Logger
	format       string
	printRemoved bool
}

// NewReportGenerator creates a generator. printRemoved lists every rewired
// check in text reports.
func NewReportGenerator(logger *slog.Logger, format string, printRemoved bool) *ReportGenerator {
	if format == "" {
		format = FormatText
	}
	return &ReportGenerator{logger: logger, format: format, printRemoved: printRemoved}
}

// Generate writes the report to outputFile, or to stdout when it is empty.
func (g *ReportGenerator) Generate(report *Report, outputFile string) error {
	g.logger.Debug("Writing report", "format", g.format, "output_file", outputFile)

	if outputFile == "" {
		return g.Write(os.Stdout, report)
	}

	file, err := utils.SafeCreateFile(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", outputFile, err)
	}
	defer file.Close()

	if err := g.Write(file, report); err != nil {
		return fmt.Errorf("failed to write report to file %s: %w", outputFile, err)
	}
	fmt.Fprintf(os.Stderr, "Report successfully written to: %s\n", outputFile)
	return nil
}

// Write renders the report to w.
func (g *ReportGenerator) Write(w io.Writer, report *Report) error {
	switch g.format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case FormatText:
		return g.writeText(w, report)
	default:
		return fmt.Errorf("unsupported report format %q", g.format)
	}
}

func (g *ReportGenerator) writeText(w io.Writer, report *Report) error {
	tw := &textWriter{w: w}
	for i, out := range report.Programs {
		if i > 0 {
			tw.printf("\n")
		}
		tw.printf("Program: %s\n", out.ProgramID)
		tw.printf("Budget: %s\n", report.Budget)

		tw.printf("Cost and risk budget only:\n")
		tw.summary(out.Simulated, out)
		tw.printf("With exploitability classification:\n")
		tw.summary(out.Removed, out)
		tw.printf("  Safe checks removed: %d (cost %d)\n", out.SafeRemoved.Checks, out.SafeRemoved.Cost)
		tw.printf("  Unsafe checks removed under budget: %d (cost %d)\n", out.UnsafeRemoved.Checks, out.UnsafeRemoved.Cost)
		if out.Ineligible > 0 {
			tw.printf("  Checks without a unique regular branch: %d\n", out.Ineligible)
		}

		if g.printRemoved && len(out.RemovedChecks) > 0 && tw.err == nil {
			tw.printf("Removed checks:\n")
			RemovedChecksTable(w, out.RemovedChecks)
		}
	}
	return tw.err
}

// RemovedChecksTable renders one row per rewired check.
func RemovedChecksTable(w io.Writer, removed []models.RemovedCheck) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Location", "Cost", "Verdict", "Aborting Call", "Check"})
	table.SetAutoWrapText(false)
	for _, r := range removed {
		abort := r.Check.AbortingCall
		if abort == "" {
			abort = "-"
		}
		table.Append([]string{
			r.Check.Location.String(),
			strconv.FormatUint(r.Cost, 10),
			r.Verdict.String(),
			abort,
			r.Check.ID,
		})
	}
	table.Render()
}

// Percent formats part/total as a percentage, or nan% for an empty total.
func Percent(part, total uint64) string {
	if total == 0 {
		return "nan%"
	}
	return fmt.Sprintf("%.2f%%", 100*float64(part)/float64(total))
}

type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...interface{}) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) summary(removed models.Counter, out *models.ElisionOutcome) {
	t.printf("  Removed %d out of %d static checks (%s)\n",
		removed.Checks, out.TotalChecks, Percent(uint64(removed.Checks), uint64(out.TotalChecks)))
	t.printf("  Removed %d out of %d dynamic checks (%s)\n",
		removed.Cost, out.TotalCost, Percent(removed.Cost, out.TotalCost))
}
