package integrity

import "sort"

// IssueType is the stable identifier of a detected invariant violation.
type IssueType string

const (
	IssueDanglingPhotoReference      IssueType = "dangling-photo-reference"
	IssueDanglingPersonReference     IssueType = "dangling-person-reference"
	IssueOrphanedDescriptor          IssueType = "orphaned-descriptor"
	IssueVerifiedWithoutPerson       IssueType = "verified-without-person"
	IssueVerifiedWithWrongConfidence IssueType = "verified-with-wrong-confidence"
	IssuePersonWithoutConfidence     IssueType = "person-without-confidence"
	IssueDuplicateObservations       IssueType = "duplicate-observations"
	IssueDuplicateDescriptors        IssueType = "duplicate-descriptors"
	IssueDescriptorWithoutEmbedding  IssueType = "descriptor-without-embedding"
	IssueDescriptorWithoutPerson     IssueType = "descriptor-without-person"
	IssueDuplicatePersonIdentity     IssueType = "duplicate-person-identity"
	IssuePeopleWithoutObservations   IssueType = "people-without-observations"
	IssuePeopleWithoutDescriptors    IssueType = "people-without-descriptors"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

type Fixability string

const (
	FixabilityAuto     Fixability = "auto-fixable"
	FixabilityOperator Fixability = "needs-operator-decision"
	FixabilityInfoOnly Fixability = "info-only"
)

// LifecycleState tracks an issue category from classification to resolution.
// Scan reports carry the state of each open category; fix results carry the
// state the fix left the category in.
type LifecycleState string

const (
	StateClassified               LifecycleState = "classified"
	StateAutoFixed                LifecycleState = "auto-fixed"
	StateAwaitingOperatorDecision LifecycleState = "awaiting-operator-decision"
	StateInfoOnly                 LifecycleState = "info-only"
	StateResolved                 LifecycleState = "resolved"
)

// Classification is the static severity and fixability of an issue type.
type Classification struct {
	Severity   Severity   `json:"severity"`
	Fixability Fixability `json:"fixability"`
	Policy     string     `json:"policy,omitempty"`
}

var classifications = map[IssueType]Classification{
	IssueDanglingPhotoReference:      {Severity: SeverityCritical, Fixability: FixabilityAuto},
	IssueDanglingPersonReference:     {Severity: SeverityCritical, Fixability: FixabilityAuto},
	IssueOrphanedDescriptor:          {Severity: SeverityHigh, Fixability: FixabilityAuto},
	IssueVerifiedWithoutPerson:       {Severity: SeverityHigh, Fixability: FixabilityAuto},
	IssueDuplicateObservations:       {Severity: SeverityHigh, Fixability: FixabilityAuto, Policy: ObservationDedupPolicy.Name},
	IssueDescriptorWithoutEmbedding:  {Severity: SeverityHigh, Fixability: FixabilityAuto},
	IssueVerifiedWithWrongConfidence: {Severity: SeverityMedium, Fixability: FixabilityAuto},
	IssuePersonWithoutConfidence:     {Severity: SeverityMedium, Fixability: FixabilityAuto},
	IssueDuplicateDescriptors: {
		Severity:   SeverityMedium,
		Fixability: FixabilityAuto,
		Policy:     DescriptorDedupVerifiedPolicy.Name + "|" + DescriptorDedupUnverifiedPolicy.Name,
	},
	IssueDescriptorWithoutPerson:   {Severity: SeverityMedium, Fixability: FixabilityOperator},
	IssueDuplicatePersonIdentity:   {Severity: SeverityLow, Fixability: FixabilityOperator},
	IssuePeopleWithoutObservations: {Severity: SeverityInfo, Fixability: FixabilityInfoOnly},
	IssuePeopleWithoutDescriptors:  {Severity: SeverityInfo, Fixability: FixabilityInfoOnly},
}

// Classify returns the classification of issueType.
func Classify(issueType IssueType) (Classification, bool) {
	c, ok := classifications[issueType]
	return c, ok
}

// Classifications returns a copy of the full classification table.
func Classifications() map[IssueType]Classification {
	out := make(map[IssueType]Classification, len(classifications))
	for k, v := range classifications {
		out[k] = v
	}
	return out
}

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

// SortedIssueTypes returns every issue type, most severe first, then by name.
func SortedIssueTypes() []IssueType {
	out := make([]IssueType, 0, len(classifications))
	for t := range classifications {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := severityRank[classifications[out[i]].Severity], severityRank[classifications[out[j]].Severity]
		if ri != rj {
			return ri < rj
		}
		return out[i] < out[j]
	})
	return out
}
