package integrity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/facecheck/internal/domain"
	"github.com/timmy/facecheck/internal/logger"
)

// Engine runs integrity scans, fixes and person/descriptor maintenance
// against a Store. Every operation takes one thresholds snapshot at start.
type Engine struct {
	store     Store
	config    ConfigProvider
	generator DescriptorGenerator
	index     IndexRebuilder
	rules     *RuleRegistry
	fixes     *FixApplier
	now       func() time.Time
}

// NewEngine creates an Engine with the built-in rules and fix handlers.
// Parameters:
//   - store: relational dataset to scan and repair.
//   - cfg: threshold source, read once per operation.
//   - generator: ML descriptor regeneration; nil makes embedding repairs fail per row.
//   - index: similarity index rebuild after descriptor writes; nil skips rebuilds.
// Returns:
//   - *Engine: initialized engine.
func NewEngine(store Store, cfg ConfigProvider, generator DescriptorGenerator, index IndexRebuilder) *Engine {
	return &Engine{
		store:     store,
		config:    cfg,
		generator: generator,
		index:     index,
		rules:     DefaultRules(),
		fixes:     NewFixApplier(),
		now:       time.Now,
	}
}

// Rules exposes the rule registry for registering additional checks.
func (e *Engine) Rules() *RuleRegistry {
	return e.rules
}

// Fixes exposes the fix applier for registering additional handlers.
func (e *Engine) Fixes() *FixApplier {
	return e.fixes
}

func (e *Engine) thresholds(ctx context.Context) (Thresholds, error) {
	t, err := e.config.Thresholds(ctx)
	if err != nil {
		return Thresholds{}, fmt.Errorf("load thresholds: %w", err)
	}
	return t.normalized(), nil
}

// RunIntegrityScan evaluates every registered rule and returns the report.
// Tables are read once and shared by all rules; a table that cannot be read
// marks each dependent check as failed without stopping the others.
func (e *Engine) RunIntegrityScan(ctx context.Context) (*Report, error) {
	t, err := e.thresholds(ctx)
	if err != nil {
		return nil, err
	}
	scanID := uuid.New().String()
	ctx = logger.SetScanID(ctx, scanID)
	report := newReport(scanID, e.now(), t)

	data := newDataset(NewDatasetScanner(e.store, t))
	for _, rule := range e.rules.Rules() {
		report.ChecksAttempted++
		if err := data.ensure(ctx, rule.Needs...); err != nil {
			logger.CtxWarn(ctx, "Check %s failed: %v", rule.Type, err)
			report.fail(rule.Type, err)
			continue
		}
		report.record(rule.Evaluate(data), t.SampleLimit)
	}

	report.Stats = data.stats()
	report.FinishedAt = e.now()
	report.DurationMs = report.FinishedAt.Sub(report.StartedAt).Milliseconds()

	logger.With(logger.Fields{
		logger.FieldDurationMs: report.DurationMs,
		logger.FieldCount:      report.TotalIssues,
		logger.FieldFailed:     len(report.FailedChecks),
	}).Info(ctx, "Integrity scan finished: %d/%d checks performed", report.ChecksPerformed, report.ChecksAttempted)
	return report, nil
}

// ApplyFix re-detects issueType on fresh snapshots and applies its registered fix.
func (e *Engine) ApplyFix(ctx context.Context, issueType IssueType) (*FixResult, error) {
	c, ok := Classify(issueType)
	if !ok {
		return nil, fmt.Errorf("%q: %w", issueType, ErrUnknownIssueType)
	}
	if c.Fixability != FixabilityAuto {
		return nil, fmt.Errorf("%q is %s: %w", issueType, c.Fixability, ErrNotAutoFixable)
	}
	rule, ok := e.rules.Lookup(issueType)
	if !ok {
		return nil, fmt.Errorf("%q: %w", issueType, ErrUnknownIssueType)
	}
	handler, ok := e.fixes.handler(issueType)
	if !ok {
		return nil, fmt.Errorf("%q has no fix handler: %w", issueType, ErrNotAutoFixable)
	}

	t, err := e.thresholds(ctx)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetIssueType(ctx, string(issueType))
	start := e.now()

	data := newDataset(NewDatasetScanner(e.store, t))
	if err := data.ensure(ctx, rule.Needs...); err != nil {
		return nil, err
	}
	violation := rule.Evaluate(data)

	res := &FixResult{IssueType: issueType, TouchedIDs: []int64{}}
	fc := &fixContext{store: e.store, data: data, thresholds: t, generator: e.generator}
	handler(ctx, fc, violation, res)
	res.settle(violation.Count())
	if res.reindex {
		res.IndexRebuilt = e.rebuildIndex(ctx)
	}
	sort.Slice(res.TouchedIDs, func(i, j int) bool { return res.TouchedIDs[i] < res.TouchedIDs[j] })

	logger.With(logger.Fields{
		logger.FieldDurationMs: e.now().Sub(start).Milliseconds(),
		logger.FieldCount:      res.FixedCount,
		logger.FieldFailed:     res.FailedCount,
	}).Info(ctx, "Fix applied: %d detected", violation.Count())
	return res, nil
}

// FindDuplicatePersons groups persons sharing an identifier value.
func (e *Engine) FindDuplicatePersons(ctx context.Context) ([]DuplicateGroup, error) {
	t, err := e.thresholds(ctx)
	if err != nil {
		return nil, err
	}
	persons, err := NewDatasetScanner(e.store, t).Persons(ctx)
	if err != nil {
		return nil, err
	}
	groups := BuildDuplicateGroups(persons, domain.IdentityFields)
	if groups == nil {
		groups = []DuplicateGroup{}
	}
	return groups, nil
}

// MergePersons folds discardIDs into keepID. Reassigned observations lose
// their verification and get the configured merge confidence.
func (e *Engine) MergePersons(ctx context.Context, keepID int64, discardIDs []int64) (*MergeResult, error) {
	t, err := e.thresholds(ctx)
	if err != nil {
		return nil, err
	}
	result, err := NewMergeExecutor(t.MergeConfidence).Merge(ctx, e.store, keepID, discardIDs)
	if err != nil {
		return nil, err
	}
	if result.MovedDescriptors > 0 {
		result.IndexRebuilt = e.rebuildIndex(ctx)
	}
	logger.CtxInfo(ctx, "Merged %d persons into %d: moved %d observations, %d descriptors, backfilled %v",
		result.DeletedCount, keepID, result.MovedObservations, result.MovedDescriptors, result.MergedFields)
	return result, nil
}

// DeletePersonWithUnlink deletes a person, nulling its observations first.
func (e *Engine) DeletePersonWithUnlink(ctx context.Context, personID int64) (*DeleteResult, error) {
	result, err := DeleteWithUnlink(ctx, e.store, personID)
	if err != nil {
		return nil, err
	}
	if result.DeletedDescriptors > 0 {
		result.IndexRebuilt = e.rebuildIndex(ctx)
	}
	logger.CtxInfo(ctx, "Deleted person %d: unlinked %d observations, removed %d descriptors",
		personID, result.UnlinkedObservations, result.DeletedDescriptors)
	return result, nil
}

// ExclusionResult summarizes a soft-exclusion change for one person.
type ExclusionResult struct {
	PersonID     int64      `json:"person_id"`
	ChangedIDs   []int64    `json:"changed_ids"`
	Count        int        `json:"count"`
	Errors       []RowError `json:"errors,omitempty"`
	IndexRebuilt bool       `json:"index_rebuilt"`
}

// AuditPersonEmbeddings scores a person's descriptors against their centroid.
// A threshold <= 0 uses the configured outlier threshold.
func (e *Engine) AuditPersonEmbeddings(ctx context.Context, personID int64, threshold float64) (*EmbeddingAudit, error) {
	t, err := e.thresholds(ctx)
	if err != nil {
		return nil, err
	}
	return e.auditPerson(ctx, t, personID, threshold)
}

func (e *Engine) auditPerson(ctx context.Context, t Thresholds, personID int64, threshold float64) (*EmbeddingAudit, error) {
	if threshold <= 0 {
		threshold = t.OutlierThreshold
	}
	persons, err := e.store.GetPersons(ctx, []int64{personID})
	if err != nil {
		return nil, fmt.Errorf("load person: %w", err)
	}
	if len(persons) == 0 {
		return nil, fmt.Errorf("person %d: %w", personID, ErrPersonNotFound)
	}
	descriptors, err := e.store.ListDescriptorsForPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("load descriptors: %w", err)
	}
	return NewConsistencyAuditor(t.MinDescriptors).Audit(personID, descriptors, threshold), nil
}

// ClearOutliers soft-excludes the outliers found by AuditPersonEmbeddings.
func (e *Engine) ClearOutliers(ctx context.Context, personID int64, threshold float64) (*ExclusionResult, error) {
	t, err := e.thresholds(ctx)
	if err != nil {
		return nil, err
	}
	audit, err := e.auditPerson(ctx, t, personID, threshold)
	if err != nil {
		return nil, err
	}
	return e.setExcluded(ctx, t, personID, audit.OutlierIDs, true), nil
}

// ReinstateDescriptors clears the excluded flag on all of a person's descriptors.
func (e *Engine) ReinstateDescriptors(ctx context.Context, personID int64) (*ExclusionResult, error) {
	t, err := e.thresholds(ctx)
	if err != nil {
		return nil, err
	}
	persons, err := e.store.GetPersons(ctx, []int64{personID})
	if err != nil {
		return nil, fmt.Errorf("load person: %w", err)
	}
	if len(persons) == 0 {
		return nil, fmt.Errorf("person %d: %w", personID, ErrPersonNotFound)
	}
	descriptors, err := e.store.ListDescriptorsForPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("load descriptors: %w", err)
	}
	var ids []int64
	for _, d := range descriptors {
		if d.Excluded {
			ids = append(ids, d.ID)
		}
	}
	return e.setExcluded(ctx, t, personID, ids, false), nil
}

func (e *Engine) setExcluded(ctx context.Context, t Thresholds, personID int64, ids []int64, excluded bool) *ExclusionResult {
	res := &FixResult{TouchedIDs: []int64{}}
	applyChunked(ctx, ids, t.WriteChunkSize, func(ctx context.Context, chunk []int64) error {
		return e.store.SetDescriptorsExcluded(ctx, chunk, excluded)
	}, res)
	out := &ExclusionResult{PersonID: personID, ChangedIDs: res.TouchedIDs, Count: res.FixedCount, Errors: res.Errors}
	if out.Count > 0 {
		out.IndexRebuilt = e.rebuildIndex(ctx)
	}
	return out
}

// PersonAuditSummary is the mass-audit outcome for one person.
type PersonAuditSummary struct {
	PersonID int64 `json:"person_id"`
	Before   int   `json:"before"`
	After    int   `json:"after"`
	Excluded int   `json:"excluded"`
}

// MassAuditResult is the outcome of auditing every eligible person.
type MassAuditResult struct {
	Threshold     float64              `json:"threshold"`
	Persons       []PersonAuditSummary `json:"persons"`
	TotalExcluded int                  `json:"total_excluded"`
	Errors        []RowError           `json:"errors,omitempty"`
	IndexRebuilt  bool                 `json:"index_rebuilt"`
}

// MassAudit audits every person with enough descriptors and soft-excludes
// their outliers. It never deletes and rebuilds the index once at the end.
func (e *Engine) MassAudit(ctx context.Context, threshold float64) (*MassAuditResult, error) {
	t, err := e.thresholds(ctx)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = t.OutlierThreshold
	}
	descriptors, err := NewDatasetScanner(e.store, t).Descriptors(ctx)
	if err != nil {
		return nil, err
	}

	byPerson := make(map[int64][]domain.FaceDescriptor)
	for _, d := range descriptors {
		if d.PersonID != nil {
			byPerson[*d.PersonID] = append(byPerson[*d.PersonID], d)
		}
	}
	personIDs := make([]int64, 0, len(byPerson))
	for id := range byPerson {
		personIDs = append(personIDs, id)
	}
	sort.Slice(personIDs, func(i, j int) bool { return personIDs[i] < personIDs[j] })

	result := &MassAuditResult{Threshold: threshold, Persons: []PersonAuditSummary{}}
	auditor := NewConsistencyAuditor(t.MinDescriptors)
	for _, personID := range personIDs {
		audit := auditor.Audit(personID, byPerson[personID], threshold)
		if !audit.Eligible {
			continue
		}
		res := &FixResult{}
		applyChunked(ctx, audit.OutlierIDs, t.WriteChunkSize, func(ctx context.Context, chunk []int64) error {
			return e.store.SetDescriptorsExcluded(ctx, chunk, true)
		}, res)
		result.Persons = append(result.Persons, PersonAuditSummary{
			PersonID: personID,
			Before:   audit.Considered,
			After:    audit.Considered - res.FixedCount,
			Excluded: res.FixedCount,
		})
		result.TotalExcluded += res.FixedCount
		result.Errors = append(result.Errors, res.Errors...)
	}
	if result.TotalExcluded > 0 {
		result.IndexRebuilt = e.rebuildIndex(ctx)
	}
	logger.With(logger.Fields{logger.FieldCount: result.TotalExcluded}).
		Info(ctx, "Mass audit finished over %d persons", len(result.Persons))
	return result, nil
}

// rebuildIndex reports whether the index was rebuilt. A failure is logged and
// left for the next write or an explicit rebuild; the relational data stays authoritative.
func (e *Engine) rebuildIndex(ctx context.Context) bool {
	if e.index == nil {
		return false
	}
	if err := e.index.RebuildIndex(ctx); err != nil {
		logger.CtxWarn(ctx, "Index rebuild failed: %v", err)
		return false
	}
	return true
}
