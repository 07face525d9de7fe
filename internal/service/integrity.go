package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/facecheck/internal/domain"
	"github.com/timmy/facecheck/internal/integrity"
	"github.com/timmy/facecheck/internal/logger"
	"github.com/timmy/facecheck/internal/metrics"
)

// ErrReportNotArchived is returned when a run has no archived report.
var ErrReportNotArchived = errors.New("report not archived")

// ScanRunStore records scan history.
type ScanRunStore interface {
	Create(ctx context.Context, run *domain.ScanRun) error
	Update(ctx context.Context, run *domain.ScanRun) error
	ListArchived(ctx context.Context, limit, offset int) ([]domain.ScanRun, error)
	GetByID(ctx context.Context, id string) (*domain.ScanRun, error)
	ListRecent(ctx context.Context, status domain.ScanRunStatus, limit, offset int) ([]domain.ScanRun, error)
}

// ReportArchiver stores full scan reports outside the database.
type ReportArchiver interface {
	Put(ctx context.Context, scanID string, report any) (string, error)
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Remove(ctx context.Context, key string) error
}

// pruneBatch bounds how many expired reports one scan removes.
const pruneBatch = 100

// IntegrityService exposes the reconciliation engine to the HTTP API and CLI.
// It records every scan in the run history and instruments each operation.
type IntegrityService struct {
	engine   *integrity.Engine
	runs     ScanRunStore
	archive  ReportArchiver
	settings *SettingsProvider
	logger   *logger.Logger

	retainReports int
}

// NewIntegrityService creates a new integrity service.
// Parameters:
//   - engine: reconciliation engine.
//   - runs: scan run history store.
//   - archive: optional report archive; nil keeps reports out of object storage.
//   - settings: threshold provider, also used for operator overrides.
//   - log: logger instance.
// Returns:
//   - *IntegrityService: initialized service.
func NewIntegrityService(
	engine *integrity.Engine,
	runs ScanRunStore,
	archive ReportArchiver,
	settings *SettingsProvider,
	log *logger.Logger,
) *IntegrityService {
	return &IntegrityService{
		engine:   engine,
		runs:     runs,
		archive:  archive,
		settings: settings,
		logger:   log,
	}
}

// SetReportRetention keeps only the newest n archived reports. Zero keeps all.
func (s *IntegrityService) SetReportRetention(n int) {
	if n < 0 {
		n = 0
	}
	s.retainReports = n
}

func (s *IntegrityService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// RunScan runs an integrity scan, archives the report and records the run.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - *integrity.Report: the scan report.
//   - *domain.ScanRun: the recorded run.
//   - error: non-nil if the scan could not start or the run could not be recorded.
func (s *IntegrityService) RunScan(ctx context.Context) (*integrity.Report, *domain.ScanRun, error) {
	start := time.Now()
	report, err := s.engine.RunIntegrityScan(ctx)
	metrics.RecordOperation("scan", err)
	if err != nil {
		return nil, nil, err
	}
	ctx = logger.SetScanID(ctx, report.ScanID)

	run := scanRunFromReport(report)
	if s.archive != nil {
		key, err := s.archive.Put(ctx, report.ScanID, report)
		if err != nil {
			s.log(ctx).WithError(err).Warnf("Failed to archive report %s", report.ScanID)
		} else {
			run.ReportKey = key
		}
	}
	metrics.RecordScan(string(run.Status), time.Since(start), run.IssueCounts, run.FailedChecks)

	if err := s.runs.Create(ctx, run); err != nil {
		return report, nil, fmt.Errorf("record scan run: %w", err)
	}
	if run.ReportKey != "" {
		s.pruneReports(ctx)
	}
	return report, run, nil
}

// pruneReports removes archived reports beyond the retention limit and clears
// their keys. The runs themselves stay in the history.
func (s *IntegrityService) pruneReports(ctx context.Context) int {
	if s.archive == nil || s.retainReports == 0 {
		return 0
	}
	expired, err := s.runs.ListArchived(ctx, pruneBatch, s.retainReports)
	if err != nil {
		s.log(ctx).WithError(err).Warn("Failed to list archived reports")
		return 0
	}
	pruned := 0
	for i := range expired {
		run := &expired[i]
		if err := s.archive.Remove(ctx, run.ReportKey); err != nil {
			s.log(ctx).WithError(err).Warnf("Failed to remove report %s", run.ReportKey)
			continue
		}
		run.ReportKey = ""
		if err := s.runs.Update(ctx, run); err != nil {
			s.log(ctx).WithError(err).Warnf("Failed to clear report key of scan %s", run.ID)
			continue
		}
		pruned++
	}
	if pruned > 0 {
		s.log(ctx).WithField(logger.FieldCount, pruned).Info("Pruned archived reports")
	}
	return pruned
}

func scanRunFromReport(report *integrity.Report) *domain.ScanRun {
	status := domain.ScanRunStatusComplete
	if !report.Complete() {
		status = domain.ScanRunStatusPartial
	}
	counts := make(domain.CountMap, len(report.PerCategoryCounts))
	for issueType, count := range report.PerCategoryCounts {
		counts[string(issueType)] = count
	}
	failed := make(domain.StringArray, 0, len(report.FailedChecks))
	for _, fc := range report.FailedChecks {
		failed = append(failed, string(fc.IssueType))
	}
	return &domain.ScanRun{
		ID:              report.ScanID,
		Status:          status,
		StartedAt:       report.StartedAt,
		FinishedAt:      report.FinishedAt,
		DurationMs:      report.DurationMs,
		TotalIssues:     report.TotalIssues,
		ChecksPerformed: report.ChecksPerformed,
		ChecksAttempted: report.ChecksAttempted,
		FailedChecks:    failed,
		IssueCounts:     counts,
	}
}

// ApplyFix applies the fix registered for issueType.
func (s *IntegrityService) ApplyFix(ctx context.Context, issueType integrity.IssueType) (*integrity.FixResult, error) {
	res, err := s.engine.ApplyFix(ctx, issueType)
	metrics.RecordOperation("fix", err)
	if err != nil {
		return nil, err
	}
	metrics.RecordFix(string(issueType), res.FixedCount, res.FailedCount)
	return res, nil
}

// IssueTypeInfo describes one issue category for listings.
type IssueTypeInfo struct {
	Type integrity.IssueType `json:"type"`
	integrity.Classification
}

// IssueTypes lists every known issue category, most severe first.
func (s *IntegrityService) IssueTypes() []IssueTypeInfo {
	types := integrity.SortedIssueTypes()
	out := make([]IssueTypeInfo, 0, len(types))
	for _, issueType := range types {
		c, _ := integrity.Classify(issueType)
		out = append(out, IssueTypeInfo{Type: issueType, Classification: c})
	}
	return out
}

// FindDuplicates groups persons sharing an identifier.
func (s *IntegrityService) FindDuplicates(ctx context.Context) ([]integrity.DuplicateGroup, error) {
	groups, err := s.engine.FindDuplicatePersons(ctx)
	metrics.RecordOperation("find_duplicates", err)
	return groups, err
}

// Merge folds discardIDs into keepID.
func (s *IntegrityService) Merge(ctx context.Context, keepID int64, discardIDs []int64) (*integrity.MergeResult, error) {
	ctx = logger.WithField(ctx, logger.FieldPersonID, keepID)
	res, err := s.engine.MergePersons(ctx, keepID, discardIDs)
	metrics.RecordOperation("merge", err)
	if err != nil {
		s.log(ctx).WithError(err).Warnf("Merge into person %d failed", keepID)
	}
	return res, err
}

// DeletePerson deletes a person after unlinking its observations.
func (s *IntegrityService) DeletePerson(ctx context.Context, personID int64) (*integrity.DeleteResult, error) {
	ctx = logger.WithField(ctx, logger.FieldPersonID, personID)
	res, err := s.engine.DeletePersonWithUnlink(ctx, personID)
	metrics.RecordOperation("delete_person", err)
	return res, err
}

// AuditPerson scores a person's descriptors against their centroid.
func (s *IntegrityService) AuditPerson(ctx context.Context, personID int64, threshold float64) (*integrity.EmbeddingAudit, error) {
	res, err := s.engine.AuditPersonEmbeddings(ctx, personID, threshold)
	metrics.RecordOperation("audit", err)
	return res, err
}

// ClearOutliers soft-excludes a person's outlier descriptors.
func (s *IntegrityService) ClearOutliers(ctx context.Context, personID int64, threshold float64) (*integrity.ExclusionResult, error) {
	ctx = logger.WithField(ctx, logger.FieldPersonID, personID)
	res, err := s.engine.ClearOutliers(ctx, personID, threshold)
	metrics.RecordOperation("clear_outliers", err)
	return res, err
}

// Reinstate clears the excluded flag on a person's descriptors.
func (s *IntegrityService) Reinstate(ctx context.Context, personID int64) (*integrity.ExclusionResult, error) {
	ctx = logger.WithField(ctx, logger.FieldPersonID, personID)
	res, err := s.engine.ReinstateDescriptors(ctx, personID)
	metrics.RecordOperation("reinstate", err)
	return res, err
}

// MassAudit audits every eligible person and excludes their outliers.
func (s *IntegrityService) MassAudit(ctx context.Context, threshold float64) (*integrity.MassAuditResult, error) {
	res, err := s.engine.MassAudit(ctx, threshold)
	metrics.RecordOperation("mass_audit", err)
	return res, err
}

// ListRuns returns recent scan runs, newest first.
func (s *IntegrityService) ListRuns(ctx context.Context, status domain.ScanRunStatus, limit, offset int) ([]domain.ScanRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.runs.ListRecent(ctx, status, limit, offset)
}

// GetRun returns one scan run.
func (s *IntegrityService) GetRun(ctx context.Context, id string) (*domain.ScanRun, error) {
	return s.runs.GetByID(ctx, id)
}

// GetReport returns the archived report of a scan run.
func (s *IntegrityService) GetReport(ctx context.Context, id string) (json.RawMessage, error) {
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.archive == nil || run.ReportKey == "" {
		return nil, fmt.Errorf("scan %s: %w", id, ErrReportNotArchived)
	}
	return s.archive.Get(ctx, run.ReportKey)
}

// Settings returns the effective thresholds.
func (s *IntegrityService) Settings(ctx context.Context) ([]SettingView, error) {
	return s.settings.List(ctx)
}

// UpdateSetting stores a threshold override. An empty value resets the key.
func (s *IntegrityService) UpdateSetting(ctx context.Context, key, value string) error {
	if value == "" {
		return s.settings.Reset(ctx, key)
	}
	return s.settings.Update(ctx, key, value)
}
