package types

import "errors"

// TransitionType classifies the relation between a superseded provision
// and its current-law counterpart.
type TransitionType string

const (
	TransitionEquivalent TransitionType = "equivalent"
	TransitionModified   TransitionType = "modified"
	TransitionSplit      TransitionType = "split"
	TransitionMerged     TransitionType = "merged"
	TransitionDeleted    TransitionType = "deleted"
	TransitionNew        TransitionType = "new"
)

// WrongVoteDemotionThreshold is the number of recorded wrong-votes at
// which a mapping is automatically deactivated.
const WrongVoteDemotionThreshold = 3

// DemotedConfidence is the fixed confidence assigned to a mapping
// demoted by community votes.
const DemotedConfidence = 0.30

// TransitionMapping is a directed edge from an old-law section to its
// current-law replacement. NewSectionID is zero for "deleted"
// provisions. Created inactive during ingestion; activated only by the
// tier logic or explicit human approval.
type TransitionMapping struct {
	ID            int64
	OldActID      int64
	OldSection    string
	NewActID      int64
	NewSectionID  int64 // 0 = no target (deleted provisions)
	NewSection    string
	Type          TransitionType
	Confidence    float64
	Active        bool
	ApprovedBy    string // Provenance label, e.g. "auto:equivalence-table"
	ScopeChange   string // Optional note, e.g. "penalty enhanced"
	CorrectVotes  int
	WrongVotes    int
}

// Validate enforces the structural invariants that hold for every
// mapping regardless of activation state.
func (m *TransitionMapping) Validate() error {
	if m.OldActID == 0 || m.OldSection == "" {
		return errors.New("transition mapping requires an old-law source")
	}
	if m.OldActID == m.NewActID {
		return errors.New("transition mapping cannot stay within one act")
	}
	if m.Type == TransitionEquivalent && m.NewSectionID == 0 {
		return errors.New("equivalent mapping requires a target section")
	}
	return nil
}
