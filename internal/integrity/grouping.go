package integrity

import (
	"sort"

	"github.com/timmy/facecheck/internal/domain"
)

// DuplicateGroup is a set of persons sharing one normalized identifier value.
type DuplicateGroup struct {
	MatchField string          `json:"match_field"`
	Value      string          `json:"value"`
	Persons    []domain.Person `json:"persons"`
}

// PersonIDs returns the ids of the group members in ascending order.
func (g DuplicateGroup) PersonIDs() []int64 {
	ids := make([]int64, len(g.Persons))
	for i := range g.Persons {
		ids[i] = g.Persons[i].ID
	}
	return ids
}

// BuildDuplicateGroups groups persons by exact normalized match on each field.
// Fields are visited in order and a person already claimed by an earlier
// group is not reconsidered, so every person lands in at most one group.
// Groups within a field are ordered by their lowest member id.
func BuildDuplicateGroups(persons []domain.Person, fields []domain.PersonField) []DuplicateGroup {
	sorted := make([]domain.Person, len(persons))
	copy(sorted, persons)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	claimed := make(map[int64]bool)
	var groups []DuplicateGroup

	for _, field := range fields {
		byValue := make(map[string][]domain.Person)
		var order []string
		for i := range sorted {
			p := &sorted[i]
			if claimed[p.ID] {
				continue
			}
			v := domain.NormalizeIdentity(field.Value(p))
			if v == "" {
				continue
			}
			if _, seen := byValue[v]; !seen {
				order = append(order, v)
			}
			byValue[v] = append(byValue[v], *p)
		}
		for _, v := range order {
			members := byValue[v]
			if len(members) < 2 {
				continue
			}
			for _, m := range members {
				claimed[m.ID] = true
			}
			groups = append(groups, DuplicateGroup{MatchField: field.Label, Value: v, Persons: members})
		}
	}
	return groups
}

// PairDuplicates is a set of rows sharing one (person, photo) pair.
type PairDuplicates struct {
	PersonID int64   `json:"person_id"`
	PhotoID  int64   `json:"photo_id"`
	IDs      []int64 `json:"ids"`
}

// groupByPair collects rows sharing a person-linked pair, keeping only groups
// of two or more. Groups come out in order of their first row.
func groupByPair[T any](rows []T, key func(*T) (pairKey, bool)) ([]pairKey, map[pairKey][]*T) {
	groups := make(map[pairKey][]*T)
	var order []pairKey
	for i := range rows {
		k, ok := key(&rows[i])
		if !ok {
			continue
		}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], &rows[i])
	}
	dups := order[:0]
	for _, k := range order {
		if len(groups[k]) > 1 {
			dups = append(dups, k)
		}
	}
	return dups, groups
}

func observationPair(o *domain.FaceObservation) (pairKey, bool) {
	if o.PersonID == nil {
		return pairKey{}, false
	}
	return newPairKey(o.PersonID, o.PhotoID), true
}

// descriptorPair only considers indexable descriptors.
func descriptorPair(d *domain.FaceDescriptor) (pairKey, bool) {
	if d.PersonID == nil || d.Excluded {
		return pairKey{}, false
	}
	return newPairKey(d.PersonID, d.PhotoID), true
}

func derefAll[T any](ptrs []*T) []T {
	out := make([]T, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}
