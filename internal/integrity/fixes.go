package integrity

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/facecheck/internal/domain"
	"github.com/timmy/facecheck/internal/logger"
)

// FixResult summarizes one applied fix.
type FixResult struct {
	IssueType    IssueType      `json:"issue_type"`
	FixedCount   int            `json:"fixed_count"`
	FailedCount  int            `json:"failed_count"`
	TouchedIDs   []int64        `json:"touched_ids"`
	Errors       []RowError     `json:"errors,omitempty"`
	IndexRebuilt bool           `json:"index_rebuilt"`
	State        LifecycleState `json:"state"`

	// reindex is set when the fix changed the set of indexable descriptors.
	reindex bool
}

func (r *FixResult) fixed(ids ...int64) {
	r.FixedCount += len(ids)
	r.TouchedIDs = append(r.TouchedIDs, ids...)
}

// settle records the lifecycle state after a fix. Nothing detected means the
// category was already resolved; any row failure keeps it classified.
func (r *FixResult) settle(detected int) {
	switch {
	case detected == 0:
		r.State = StateResolved
	case r.FailedCount > 0:
		r.State = StateClassified
	default:
		r.State = StateAutoFixed
	}
}

func (r *FixResult) fail(id int64, err error) {
	r.FailedCount++
	r.Errors = append(r.Errors, RowError{ID: id, Message: err.Error()})
}

// fixContext is what a handler gets to work with: fresh snapshots, the store
// and the thresholds snapshot of the current operation.
type fixContext struct {
	store      Store
	data       *dataset
	thresholds Thresholds
	generator  DescriptorGenerator
}

// FixHandler applies the corrective action for one issue type.
// Handlers must be idempotent: running them on repaired data changes nothing.
type FixHandler func(ctx context.Context, fc *fixContext, v Violation, res *FixResult)

// FixApplier dispatches fixes to registered handlers.
type FixApplier struct {
	handlers map[IssueType]FixHandler
}

// NewFixApplier creates an applier with the built-in handlers.
func NewFixApplier() *FixApplier {
	return &FixApplier{handlers: map[IssueType]FixHandler{
		IssueDanglingPhotoReference:      deleteObservationRows,
		IssueDanglingPersonReference:     unlinkDanglingPersons,
		IssueOrphanedDescriptor:          deleteDescriptorRows,
		IssueVerifiedWithoutPerson:       unverifyWithoutPerson,
		IssueVerifiedWithWrongConfidence: resetVerifiedConfidence,
		IssuePersonWithoutConfidence:     fillMissingConfidence,
		IssueDuplicateObservations:       dedupObservations,
		IssueDuplicateDescriptors:        dedupDescriptors,
		IssueDescriptorWithoutEmbedding:  regenerateEmbeddings,
	}}
}

// Register installs or replaces the handler for issueType.
func (a *FixApplier) Register(issueType IssueType, h FixHandler) {
	a.handlers[issueType] = h
}

func (a *FixApplier) handler(issueType IssueType) (FixHandler, bool) {
	h, ok := a.handlers[issueType]
	return h, ok
}

// applyChunked writes ids in chunks. A failing chunk is retried row by row so
// one bad row never blocks the rest of its chunk.
func applyChunked(ctx context.Context, ids []int64, size int, write func(context.Context, []int64) error, res *FixResult) {
	for start := 0; start < len(ids); start += size {
		chunk := ids[start:min(start+size, len(ids))]
		err := write(ctx, chunk)
		if err == nil {
			res.fixed(chunk...)
			continue
		}
		logger.CtxWarn(ctx, "Chunk write failed, retrying %d rows individually: %v", len(chunk), err)
		for _, id := range chunk {
			if err := write(ctx, []int64{id}); err != nil {
				res.fail(id, err)
				continue
			}
			res.fixed(id)
		}
	}
}

func patchObservations(patch domain.ObservationPatch, store Store) func(context.Context, []int64) error {
	return func(ctx context.Context, ids []int64) error {
		return store.UpdateObservations(ctx, ids, patch)
	}
}

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }

func deleteObservationRows(ctx context.Context, fc *fixContext, v Violation, res *FixResult) {
	applyChunked(ctx, v.IDs, fc.thresholds.WriteChunkSize, fc.store.DeleteObservations, res)
}

func unlinkDanglingPersons(ctx context.Context, fc *fixContext, v Violation, res *FixResult) {
	patch := domain.ObservationPatch{ClearPerson: true, Verified: boolPtr(false), ClearConfidence: true}
	applyChunked(ctx, v.IDs, fc.thresholds.WriteChunkSize, patchObservations(patch, fc.store), res)
}

func deleteDescriptorRows(ctx context.Context, fc *fixContext, v Violation, res *FixResult) {
	applyChunked(ctx, v.IDs, fc.thresholds.WriteChunkSize, fc.store.DeleteDescriptors, res)
	res.reindex = touchesIndexable(v, res)
}

func unverifyWithoutPerson(ctx context.Context, fc *fixContext, v Violation, res *FixResult) {
	patch := domain.ObservationPatch{Verified: boolPtr(false), ClearConfidence: true}
	applyChunked(ctx, v.IDs, fc.thresholds.WriteChunkSize, patchObservations(patch, fc.store), res)
}

func resetVerifiedConfidence(ctx context.Context, fc *fixContext, v Violation, res *FixResult) {
	patch := domain.ObservationPatch{RecognitionConfidence: floatPtr(1.0)}
	applyChunked(ctx, v.IDs, fc.thresholds.WriteChunkSize, patchObservations(patch, fc.store), res)
}

// fillMissingConfidence gives verified rows 1.0 and the rest the configured
// default, so it never produces a verified-with-wrong-confidence row.
func fillMissingConfidence(ctx context.Context, fc *fixContext, v Violation, res *FixResult) {
	var verified, unverified []int64
	for _, row := range v.Rows {
		o := row.(domain.FaceObservation)
		if o.Verified {
			verified = append(verified, o.ID)
		} else {
			unverified = append(unverified, o.ID)
		}
	}
	size := fc.thresholds.WriteChunkSize
	applyChunked(ctx, verified, size,
		patchObservations(domain.ObservationPatch{RecognitionConfidence: floatPtr(1.0)}, fc.store), res)
	applyChunked(ctx, unverified, size,
		patchObservations(domain.ObservationPatch{RecognitionConfidence: floatPtr(fc.thresholds.DefaultConfidence)}, fc.store), res)
}

func dedupObservations(ctx context.Context, fc *fixContext, _ Violation, res *FixResult) {
	order, groups := groupByPair(fc.data.observations, observationPair)
	var discard []int64
	for _, k := range order {
		_, dropped := Resolve(derefAll(groups[k]), ObservationDedupPolicy)
		for i := range dropped {
			discard = append(discard, dropped[i].ID)
		}
	}
	applyChunked(ctx, discard, fc.thresholds.WriteChunkSize, fc.store.DeleteObservations, res)
}

func dedupDescriptors(ctx context.Context, fc *fixContext, _ Violation, res *FixResult) {
	order, groups := groupByPair(fc.data.descriptors, descriptorPair)
	var discard []int64
	for _, k := range order {
		policy := descriptorPolicy(fc.data.pairVerified(k))
		_, dropped := Resolve(derefAll(groups[k]), policy)
		for i := range dropped {
			discard = append(discard, dropped[i].ID)
		}
	}
	applyChunked(ctx, discard, fc.thresholds.WriteChunkSize, fc.store.DeleteDescriptors, res)
	res.reindex = res.FixedCount > 0
}

// regenerateEmbeddings asks the ML service for each missing vector, using the
// best observation of the descriptor's pair as the face region.
func regenerateEmbeddings(ctx context.Context, fc *fixContext, v Violation, res *FixResult) {
	photos := fc.data.photoIndex()
	for _, row := range v.Rows {
		desc := row.(domain.FaceDescriptor)
		if err := ctx.Err(); err != nil {
			res.fail(desc.ID, err)
			continue
		}
		if fc.generator == nil {
			res.fail(desc.ID, &CollaboratorUnavailable{Service: "ml", Operation: "regenerate descriptor", Err: errors.New("no descriptor generator configured")})
			continue
		}
		photo, ok := photos[desc.PhotoID]
		if !ok {
			res.fail(desc.ID, &ReferentialIntegrityError{Entity: EntityDescriptors, ID: desc.ID, Reference: "photo", TargetID: desc.PhotoID})
			continue
		}
		candidates := fc.data.observationsForPair(newPairKey(desc.PersonID, desc.PhotoID))
		if len(candidates) == 0 {
			res.fail(desc.ID, &ReferentialIntegrityError{Entity: EntityDescriptors, ID: desc.ID, Reference: "observation on photo", TargetID: desc.PhotoID})
			continue
		}
		source, _ := Resolve(derefAll(candidates), ObservationDedupPolicy)

		vector, err := fc.generator.RegenerateDescriptor(ctx, photo.StorageRef, source.Box)
		if err != nil {
			logger.CtxWarn(ctx, "Descriptor %d regeneration skipped: %v", desc.ID, err)
			res.fail(desc.ID, err)
			continue
		}
		if len(vector) == 0 {
			res.fail(desc.ID, fmt.Errorf("empty embedding returned for descriptor %d", desc.ID))
			continue
		}
		if err := fc.store.UpdateDescriptorEmbedding(ctx, desc.ID, domain.EncodeEmbedding(vector)); err != nil {
			res.fail(desc.ID, err)
			continue
		}
		res.fixed(desc.ID)
		if desc.PersonID != nil && !desc.Excluded {
			res.reindex = true
		}
	}
}

// touchesIndexable reports whether any fixed descriptor row was part of the index.
func touchesIndexable(v Violation, res *FixResult) bool {
	touched := make(map[int64]bool, len(res.TouchedIDs))
	for _, id := range res.TouchedIDs {
		touched[id] = true
	}
	for _, row := range v.Rows {
		d, ok := row.(domain.FaceDescriptor)
		if ok && touched[d.ID] && d.PersonID != nil && !d.Excluded && d.HasEmbedding() {
			return true
		}
	}
	return false
}
