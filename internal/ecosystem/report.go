package ecosystem

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"mcpvet/pkg/logging"
)

// Report is the JSON document a validation run produces.
type Report struct {
	RunID                       string             `json:"run_id"`
	Timestamp                   string             `json:"timestamp"`
	Summary                     ReportSummary      `json:"summary"`
	StatusDistribution          map[string]int     `json:"status_distribution"`
	ProtocolVersionDistribution map[string]int     `json:"protocol_version_distribution"`
	DetailedResults             []ValidationResult `json:"detailed_results"`
	Recommendations             []string           `json:"recommendations"`
}

// ReportSummary aggregates a run into headline numbers.
type ReportSummary struct {
	TotalValidations       int      `json:"total_validations"`
	SuccessfulValidations  int      `json:"successful_validations"`
	SuccessRate            float64  `json:"success_rate"`
	AverageComplianceScore *float64 `json:"average_compliance_score"`
}

// BuildReport computes totals, distributions and recommendations over a
// run's results.
func BuildReport(runID string, results []ValidationResult) Report {
	total := len(results)
	successful := 0
	for _, result := range results {
		if successfulStatus(result.Status) {
			successful++
		}
	}

	rate := 0.0
	if total > 0 {
		rate = float64(successful) / float64(total) * 100
	}

	// Mean score over the results that carry one, only meaningful once
	// something succeeded.
	var avg *float64
	if successful > 0 {
		sum := 0.0
		scored := 0
		for _, result := range results {
			if result.ComplianceScore != nil {
				sum += *result.ComplianceScore
				scored++
			}
		}
		if scored > 0 {
			mean := sum / float64(scored)
			avg = &mean
		}
	}

	statusCounts := map[string]int{}
	versionCounts := map[string]int{}
	for _, result := range results {
		statusCounts[result.Status]++
		if result.ProtocolVersion != "" {
			versionCounts[result.ProtocolVersion]++
		}
	}

	return Report{
		RunID:     runID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Summary: ReportSummary{
			TotalValidations:       total,
			SuccessfulValidations:  successful,
			SuccessRate:            rate,
			AverageComplianceScore: avg,
		},
		StatusDistribution:          statusCounts,
		ProtocolVersionDistribution: versionCounts,
		DetailedResults:             results,
		Recommendations:             recommendations(results),
	}
}

// recommendations derives follow-up advice from fixed thresholds over the
// results.
func recommendations(results []ValidationResult) []string {
	failed := 0
	setupFailures := 0
	startFailures := 0
	versions := map[string]bool{}
	for _, result := range results {
		if !successfulStatus(result.Status) {
			failed++
		}
		if result.Status == StatusSetupFailed {
			setupFailures++
		}
		if result.Status == StatusFailedToStart {
			startFailures++
		}
		if result.ProtocolVersion != "" {
			versions[result.ProtocolVersion] = true
		}
	}

	var recs []string
	if failed > 0 {
		recs = append(recs, fmt.Sprintf("🔧 %d implementations failed validation. Consider improving framework compatibility.", failed))
	}
	if setupFailures > 0 {
		recs = append(recs, fmt.Sprintf("⚠️ %d implementations had setup issues. This may indicate missing dependencies or unclear setup instructions.", setupFailures))
	}
	if startFailures > 0 {
		recs = append(recs, fmt.Sprintf("🚀 %d servers failed to start. Consider standardizing server startup mechanisms.", startFailures))
	}
	if len(versions) > 1 {
		recs = append(recs, "📋 Multiple protocol versions detected. Ensure backward compatibility across versions.")
	}
	if len(recs) == 0 {
		recs = append(recs, "✅ All validations passed successfully!")
	}
	return recs
}

// WriteReport persists the full report as indented JSON.
func WriteReport(report Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	logging.Info(logSubsystem, "report saved to %s", path)
	return nil
}

var (
	summaryRuleStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6B7280"})
	summaryTitleStyle = lipgloss.NewStyle().Bold(true)
	statusGoodStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"})
	statusWarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"})
	statusBadStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"})
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case StatusCompliant, StatusPassed:
		return statusGoodStyle
	case StatusFailed, StatusError, StatusTimeout, StatusBuildFailed, StatusParseError:
		return statusBadStyle
	default:
		return statusWarnStyle
	}
}

// RenderSummary prints the human-readable run summary.
func RenderSummary(w io.Writer, report Report) {
	rule := summaryRuleStyle.Render(strings.Repeat("=", 50))

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, summaryTitleStyle.Render("MCP ECOSYSTEM VALIDATION SUMMARY"))
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total validations: %d\n", report.Summary.TotalValidations)
	fmt.Fprintf(w, "Successful: %d\n", report.Summary.SuccessfulValidations)
	fmt.Fprintf(w, "Success rate: %.1f%%\n", report.Summary.SuccessRate)
	if avg := report.Summary.AverageComplianceScore; avg != nil && *avg > 0 {
		fmt.Fprintf(w, "Average compliance: %.1f%%\n", *avg)
	}

	if len(report.StatusDistribution) > 0 {
		statuses := make([]string, 0, len(report.StatusDistribution))
		for status := range report.StatusDistribution {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)

		fmt.Fprintln(w)
		fmt.Fprintln(w, "Status distribution:")
		for _, status := range statuses {
			fmt.Fprintf(w, "  %s: %d\n", statusStyle(status).Render(status), report.StatusDistribution[status])
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Recommendations:")
	for _, rec := range report.Recommendations {
		fmt.Fprintf(w, "  %s\n", rec)
	}
}
