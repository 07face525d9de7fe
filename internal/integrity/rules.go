package integrity

import (
	"github.com/timmy/facecheck/internal/domain"
)

// Violation is the output of one rule: the affected row ids and the rows
// reported as samples. For duplicate issues each row is one duplicate group.
type Violation struct {
	Type IssueType
	IDs  []int64
	Rows []any
}

// Count is the number of reported rows or groups.
func (v Violation) Count() int {
	return len(v.Rows)
}

func (v *Violation) add(id int64, row any) {
	v.IDs = append(v.IDs, id)
	v.Rows = append(v.Rows, row)
}

// Rule evaluates one invariant over loaded snapshots.
type Rule struct {
	Type     IssueType
	Needs    []Entity
	Evaluate func(d *dataset) Violation
}

// RuleRegistry holds rules in evaluation order.
type RuleRegistry struct {
	rules []Rule
	index map[IssueType]int
}

// NewRuleRegistry creates a registry with the given rules.
func NewRuleRegistry(rules ...Rule) *RuleRegistry {
	r := &RuleRegistry{index: make(map[IssueType]int, len(rules))}
	for _, rule := range rules {
		r.Register(rule)
	}
	return r
}

// Register adds or replaces a rule.
func (r *RuleRegistry) Register(rule Rule) {
	if i, ok := r.index[rule.Type]; ok {
		r.rules[i] = rule
		return
	}
	r.index[rule.Type] = len(r.rules)
	r.rules = append(r.rules, rule)
}

// Lookup returns the rule for issueType.
func (r *RuleRegistry) Lookup(issueType IssueType) (Rule, bool) {
	i, ok := r.index[issueType]
	if !ok {
		return Rule{}, false
	}
	return r.rules[i], true
}

// Rules returns all rules in evaluation order.
func (r *RuleRegistry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// DefaultRules returns the built-in invariant checks.
func DefaultRules() *RuleRegistry {
	return NewRuleRegistry(
		Rule{Type: IssueDanglingPhotoReference, Needs: []Entity{EntityObservations, EntityPhotos}, Evaluate: danglingPhotoReferences},
		Rule{Type: IssueDanglingPersonReference, Needs: []Entity{EntityObservations, EntityPersons}, Evaluate: danglingPersonReferences},
		Rule{Type: IssueOrphanedDescriptor, Needs: []Entity{EntityDescriptors, EntityObservations, EntityPhotos}, Evaluate: orphanedDescriptors},
		Rule{Type: IssueVerifiedWithoutPerson, Needs: []Entity{EntityObservations}, Evaluate: verifiedWithoutPerson},
		Rule{Type: IssueVerifiedWithWrongConfidence, Needs: []Entity{EntityObservations}, Evaluate: verifiedWithWrongConfidence},
		Rule{Type: IssuePersonWithoutConfidence, Needs: []Entity{EntityObservations}, Evaluate: personWithoutConfidence},
		Rule{Type: IssueDuplicateObservations, Needs: []Entity{EntityObservations}, Evaluate: duplicateObservations},
		Rule{Type: IssueDuplicateDescriptors, Needs: []Entity{EntityDescriptors, EntityObservations}, Evaluate: duplicateDescriptors},
		Rule{Type: IssueDescriptorWithoutEmbedding, Needs: []Entity{EntityDescriptors, EntityObservations, EntityPhotos}, Evaluate: descriptorsWithoutEmbedding},
		Rule{Type: IssueDescriptorWithoutPerson, Needs: []Entity{EntityDescriptors}, Evaluate: descriptorsWithoutPerson},
		Rule{Type: IssueDuplicatePersonIdentity, Needs: []Entity{EntityPersons}, Evaluate: duplicatePersonIdentities},
		Rule{Type: IssuePeopleWithoutObservations, Needs: []Entity{EntityPersons, EntityObservations}, Evaluate: peopleWithoutObservations},
		Rule{Type: IssuePeopleWithoutDescriptors, Needs: []Entity{EntityPersons, EntityDescriptors}, Evaluate: peopleWithoutDescriptors},
	)
}

func danglingPhotoReferences(d *dataset) Violation {
	v := Violation{Type: IssueDanglingPhotoReference}
	photos := d.photoIndex()
	for i := range d.observations {
		o := &d.observations[i]
		if _, ok := photos[o.PhotoID]; !ok {
			v.add(o.ID, *o)
		}
	}
	return v
}

func danglingPersonReferences(d *dataset) Violation {
	v := Violation{Type: IssueDanglingPersonReference}
	persons := d.personIDSet()
	for i := range d.observations {
		o := &d.observations[i]
		if o.PersonID == nil {
			continue
		}
		if _, ok := persons[*o.PersonID]; !ok {
			v.add(o.ID, *o)
		}
	}
	return v
}

// orphanedDescriptors reports descriptors on a missing photo or with no
// observation for the same (person, photo) pair.
func orphanedDescriptors(d *dataset) Violation {
	v := Violation{Type: IssueOrphanedDescriptor}
	for i := range d.descriptors {
		desc := &d.descriptors[i]
		if isOrphan(d, desc) {
			v.add(desc.ID, *desc)
		}
	}
	return v
}

func isOrphan(d *dataset, desc *domain.FaceDescriptor) bool {
	if _, ok := d.photoIndex()[desc.PhotoID]; !ok {
		return true
	}
	return len(d.observationsForPair(newPairKey(desc.PersonID, desc.PhotoID))) == 0
}

func verifiedWithoutPerson(d *dataset) Violation {
	v := Violation{Type: IssueVerifiedWithoutPerson}
	for i := range d.observations {
		o := &d.observations[i]
		if o.Verified && o.PersonID == nil {
			v.add(o.ID, *o)
		}
	}
	return v
}

// verifiedWithWrongConfidence covers every verified row. A verified row without
// a person is also reported by verifiedWithoutPerson; either fix leaves it valid.
func verifiedWithWrongConfidence(d *dataset) Violation {
	v := Violation{Type: IssueVerifiedWithWrongConfidence}
	for i := range d.observations {
		o := &d.observations[i]
		if !o.Verified {
			continue
		}
		if o.RecognitionConfidence == nil || *o.RecognitionConfidence != 1.0 {
			v.add(o.ID, *o)
		}
	}
	return v
}

func personWithoutConfidence(d *dataset) Violation {
	v := Violation{Type: IssuePersonWithoutConfidence}
	for i := range d.observations {
		o := &d.observations[i]
		if o.PersonID != nil && o.RecognitionConfidence == nil {
			v.add(o.ID, *o)
		}
	}
	return v
}

func duplicateObservations(d *dataset) Violation {
	v := Violation{Type: IssueDuplicateObservations}
	order, groups := groupByPair(d.observations, observationPair)
	for _, k := range order {
		set := PairDuplicates{PersonID: k.personID, PhotoID: k.photoID}
		for _, o := range groups[k] {
			set.IDs = append(set.IDs, o.ID)
			v.IDs = append(v.IDs, o.ID)
		}
		v.Rows = append(v.Rows, set)
	}
	return v
}

func duplicateDescriptors(d *dataset) Violation {
	v := Violation{Type: IssueDuplicateDescriptors}
	order, groups := groupByPair(d.descriptors, descriptorPair)
	for _, k := range order {
		set := PairDuplicates{PersonID: k.personID, PhotoID: k.photoID}
		for _, desc := range groups[k] {
			set.IDs = append(set.IDs, desc.ID)
			v.IDs = append(v.IDs, desc.ID)
		}
		v.Rows = append(v.Rows, set)
	}
	return v
}

// descriptorsWithoutEmbedding skips descriptors that are orphaned: there is no
// observation to regenerate from, and the orphan fix removes them.
func descriptorsWithoutEmbedding(d *dataset) Violation {
	v := Violation{Type: IssueDescriptorWithoutEmbedding}
	for i := range d.descriptors {
		desc := &d.descriptors[i]
		if desc.HasEmbedding() || isOrphan(d, desc) {
			continue
		}
		v.add(desc.ID, *desc)
	}
	return v
}

func descriptorsWithoutPerson(d *dataset) Violation {
	v := Violation{Type: IssueDescriptorWithoutPerson}
	for i := range d.descriptors {
		desc := &d.descriptors[i]
		if desc.PersonID == nil {
			v.add(desc.ID, *desc)
		}
	}
	return v
}

func duplicatePersonIdentities(d *dataset) Violation {
	v := Violation{Type: IssueDuplicatePersonIdentity}
	for _, g := range BuildDuplicateGroups(d.persons, domain.IdentityFields) {
		v.IDs = append(v.IDs, g.PersonIDs()...)
		v.Rows = append(v.Rows, g)
	}
	return v
}

func peopleWithoutObservations(d *dataset) Violation {
	v := Violation{Type: IssuePeopleWithoutObservations}
	for i := range d.persons {
		p := &d.persons[i]
		if !d.personHasObservations(p.ID) {
			v.add(p.ID, *p)
		}
	}
	return v
}

func peopleWithoutDescriptors(d *dataset) Violation {
	v := Violation{Type: IssuePeopleWithoutDescriptors}
	for i := range d.persons {
		p := &d.persons[i]
		if !d.personHasDescriptors(p.ID) {
			v.add(p.ID, *p)
		}
	}
	return v
}
