package integrity

import "time"

// DatasetStats counts the rows loaded for each entity during a scan.
type DatasetStats struct {
	Persons      int `json:"persons"`
	Photos       int `json:"photos"`
	Observations int `json:"observations"`
	Descriptors  int `json:"descriptors"`
}

// FailedCheck is a rule that could not be evaluated.
type FailedCheck struct {
	IssueType IssueType `json:"issue_type"`
	Reason    string    `json:"reason"`
}

// CategoryReport is the classification of one issue category within a scan.
type CategoryReport struct {
	Classification
	Count int            `json:"count"`
	State LifecycleState `json:"state,omitempty"`
}

// Report is the result of an integrity scan. Checks whose data could not be
// read are listed in FailedChecks and have no count.
type Report struct {
	ScanID            string                       `json:"scan_id"`
	StartedAt         time.Time                    `json:"started_at"`
	FinishedAt        time.Time                    `json:"finished_at"`
	DurationMs        int64                        `json:"duration_ms"`
	Stats             DatasetStats                 `json:"stats"`
	PerCategoryCounts map[IssueType]int            `json:"per_category_counts"`
	TotalIssues       int                          `json:"total_issues"`
	ChecksPerformed   int                          `json:"checks_performed"`
	ChecksAttempted   int                          `json:"checks_attempted"`
	FailedChecks      []FailedCheck                `json:"failed_checks"`
	Classifications   map[IssueType]CategoryReport `json:"classifications"`
	Details           map[IssueType][]any          `json:"details"`
	Thresholds        Thresholds                   `json:"thresholds"`
}

// Complete reports whether every attempted check was evaluated.
func (r *Report) Complete() bool {
	return r.ChecksPerformed == r.ChecksAttempted
}

// scanState is the lifecycle state of a category that has open issues.
func scanState(c Classification, count int) LifecycleState {
	if count == 0 {
		return ""
	}
	switch c.Fixability {
	case FixabilityAuto:
		return StateClassified
	case FixabilityOperator:
		return StateAwaitingOperatorDecision
	default:
		return StateInfoOnly
	}
}

func newReport(scanID string, started time.Time, t Thresholds) *Report {
	return &Report{
		ScanID:            scanID,
		StartedAt:         started,
		PerCategoryCounts: make(map[IssueType]int),
		FailedChecks:      []FailedCheck{},
		Classifications:   make(map[IssueType]CategoryReport),
		Details:           make(map[IssueType][]any),
		Thresholds:        t,
	}
}

func (r *Report) record(v Violation, sampleLimit int) {
	count := v.Count()
	c, _ := Classify(v.Type)
	r.ChecksPerformed++
	r.PerCategoryCounts[v.Type] = count
	r.TotalIssues += count
	r.Classifications[v.Type] = CategoryReport{Classification: c, Count: count, State: scanState(c, count)}
	if count > 0 {
		r.Details[v.Type] = v.Rows[:min(count, sampleLimit)]
	}
}

func (r *Report) fail(issueType IssueType, err error) {
	c, _ := Classify(issueType)
	r.FailedChecks = append(r.FailedChecks, FailedCheck{IssueType: issueType, Reason: err.Error()})
	r.Classifications[issueType] = CategoryReport{Classification: c}
}
