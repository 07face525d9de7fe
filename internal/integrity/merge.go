package integrity

import (
	"context"
	"fmt"
	"sort"

	"github.com/timmy/facecheck/internal/domain"
)

// MergeResult summarizes a person merge.
type MergeResult struct {
	KeptID            int64    `json:"kept_id"`
	MovedObservations int64    `json:"moved_observations"`
	MovedDescriptors  int64    `json:"moved_descriptors"`
	MergedFields      []string `json:"merged_fields"`
	DeletedCount      int      `json:"deleted_count"`
	IndexRebuilt      bool     `json:"index_rebuilt"`
}

// DeleteResult summarizes a person deletion.
type DeleteResult struct {
	PersonID             int64 `json:"person_id"`
	UnlinkedObservations int64 `json:"unlinked_observations"`
	DeletedDescriptors   int64 `json:"deleted_descriptors"`
	IndexRebuilt         bool  `json:"index_rebuilt"`
}

// MergeExecutor folds discarded person records into a kept one.
// Foreign keys are always rewritten before the discarded rows are deleted.
type MergeExecutor struct {
	confidence float64
}

// NewMergeExecutor creates an executor that assigns reassigned observations
// the given recognition confidence.
func NewMergeExecutor(confidence float64) *MergeExecutor {
	return &MergeExecutor{confidence: confidence}
}

// Merge reassigns every observation and descriptor of discardIDs to keepID,
// backfills empty mergeable fields, then deletes the discarded persons.
// The steps run inside one transaction of store.
func (m *MergeExecutor) Merge(ctx context.Context, store Store, keepID int64, discardIDs []int64) (*MergeResult, error) {
	discard, err := validateMerge(keepID, discardIDs)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{KeptID: keepID}
	err = store.WithinTx(ctx, func(tx Store) error {
		all := append([]int64{keepID}, discard...)
		persons, err := tx.GetPersons(ctx, all)
		if err != nil {
			return fmt.Errorf("load persons: %w", err)
		}
		kept, discarded, err := splitMergeGroup(keepID, discard, persons)
		if err != nil {
			return err
		}

		before, err := tx.CountObservationsForPersons(ctx, all)
		if err != nil {
			return fmt.Errorf("count observations: %w", err)
		}

		if result.MovedObservations, err = tx.ReassignObservations(ctx, discard, keepID, m.confidence); err != nil {
			return fmt.Errorf("reassign observations: %w", err)
		}
		if result.MovedDescriptors, err = tx.ReassignDescriptors(ctx, discard, keepID); err != nil {
			return fmt.Errorf("reassign descriptors: %w", err)
		}

		columns, labels := backfill(kept, discarded)
		if len(columns) > 0 {
			if err := tx.UpdatePersonFields(ctx, keepID, columns); err != nil {
				return fmt.Errorf("backfill person %d: %w", keepID, err)
			}
		}
		result.MergedFields = labels

		if err := tx.DeletePersons(ctx, discard); err != nil {
			return fmt.Errorf("delete merged persons: %w", err)
		}
		result.DeletedCount = len(discard)

		after, err := tx.CountObservationsForPersons(ctx, []int64{keepID})
		if err != nil {
			return fmt.Errorf("count observations: %w", err)
		}
		if before != after {
			return &InvariantViolation{
				Invariant: "merge-conserves-observations",
				Detail:    fmt.Sprintf("group referenced %d observations before merge, kept person has %d", before, after),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func validateMerge(keepID int64, discardIDs []int64) ([]int64, error) {
	if len(discardIDs) == 0 {
		return nil, &DuplicateConflict{KeepID: keepID, Reason: "no persons to discard"}
	}
	seen := make(map[int64]bool, len(discardIDs))
	discard := make([]int64, 0, len(discardIDs))
	for _, id := range discardIDs {
		if id == keepID {
			return nil, &DuplicateConflict{KeepID: keepID, DiscardIDs: discardIDs, Reason: "kept person is also listed for discard"}
		}
		if !seen[id] {
			seen[id] = true
			discard = append(discard, id)
		}
	}
	sort.Slice(discard, func(i, j int) bool { return discard[i] < discard[j] })
	return discard, nil
}

func splitMergeGroup(keepID int64, discard []int64, persons []domain.Person) (*domain.Person, []domain.Person, error) {
	byID := make(map[int64]domain.Person, len(persons))
	for _, p := range persons {
		byID[p.ID] = p
	}
	kept, ok := byID[keepID]
	if !ok {
		return nil, nil, &DuplicateConflict{KeepID: keepID, DiscardIDs: discard, Reason: fmt.Sprintf("person %d does not exist", keepID)}
	}
	discarded := make([]domain.Person, 0, len(discard))
	for _, id := range discard {
		p, ok := byID[id]
		if !ok {
			return nil, nil, &DuplicateConflict{KeepID: keepID, DiscardIDs: discard, Reason: fmt.Sprintf("person %d does not exist", id)}
		}
		discarded = append(discarded, p)
	}
	return &kept, discarded, nil
}

// backfill picks, for each mergeable field empty on kept, the value of the most
// recently created discarded person that has one.
func backfill(kept *domain.Person, discarded []domain.Person) (map[string]string, []string) {
	donors := make([]domain.Person, len(discarded))
	copy(donors, discarded)
	sort.SliceStable(donors, func(i, j int) bool {
		if c := donors[i].CreatedAt.Compare(donors[j].CreatedAt); c != 0 {
			return c > 0
		}
		return donors[i].ID > donors[j].ID
	})

	columns := make(map[string]string)
	var labels []string
	for _, field := range domain.MergeableFields {
		if field.Value(kept) != "" {
			continue
		}
		for i := range donors {
			if v := field.Value(&donors[i]); v != "" {
				columns[field.Column] = v
				labels = append(labels, field.Label)
				break
			}
		}
	}
	return columns, labels
}

// DeleteWithUnlink removes a person after nulling its observations and
// deleting its descriptors, which the ML service can regenerate.
func DeleteWithUnlink(ctx context.Context, store Store, personID int64) (*DeleteResult, error) {
	result := &DeleteResult{PersonID: personID}
	err := store.WithinTx(ctx, func(tx Store) error {
		persons, err := tx.GetPersons(ctx, []int64{personID})
		if err != nil {
			return fmt.Errorf("load person: %w", err)
		}
		if len(persons) == 0 {
			return fmt.Errorf("person %d: %w", personID, ErrPersonNotFound)
		}
		if result.UnlinkedObservations, err = tx.UnlinkObservationsForPerson(ctx, personID); err != nil {
			return fmt.Errorf("unlink observations: %w", err)
		}
		if result.DeletedDescriptors, err = tx.DeleteDescriptorsForPerson(ctx, personID); err != nil {
			return fmt.Errorf("delete descriptors: %w", err)
		}
		if err := tx.DeletePersons(ctx, []int64{personID}); err != nil {
			return fmt.Errorf("delete person: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
