package agent

import (
	"github.com/suviet/agent/types"
)

// ConversationState is the unit of work threaded through the
// orchestrator for one user turn.
//
// Messages persist across turns via the checkpoint store; every other
// field is turn-scoped and discarded at turn end.
type ConversationState struct {
	Messages           []types.Message
	UserInput          string
	QueryType          types.QueryType
	RetrievedDocuments []types.EvidenceItem
	WebSearchResults   []types.EvidenceItem
	FinalAnswer        string
	EvalVerdict        types.Verdict
	EvalHistory        []Evaluation
}

// Evaluation is one reflection cycle's result.
type Evaluation struct {
	Verdict  types.Verdict `json:"verdict"`
	Critique string        `json:"critique"`
}

// HasEvidence reports whether at least one evidence source is populated.
func (s *ConversationState) HasEvidence() bool {
	return len(s.RetrievedDocuments) > 0 || len(s.WebSearchResults) > 0
}

// Iterations returns the number of completed reflection cycles.
func (s *ConversationState) Iterations() int {
	return len(s.EvalHistory)
}

// Node outputs are typed deltas merged into the state by Apply methods,
// never open-ended key-value bags. Each node returns exactly one delta
// type, so a reader can see what a node may change from its signature.

// ClassifyDelta is the classify node's output.
type ClassifyDelta struct {
	QueryType types.QueryType
	UserInput string
}

// Apply merges the delta into state.
func (d ClassifyDelta) Apply(s *ConversationState) {
	s.QueryType = d.QueryType
	s.UserInput = d.UserInput
}

// SearchDelta is the search_history node's output.
type SearchDelta struct {
	RetrievedDocuments []types.EvidenceItem
	WebSearchResults   []types.EvidenceItem
}

// Apply merges the delta into state. Retrieval results replace the
// previous iteration's evidence rather than accumulating.
func (d SearchDelta) Apply(s *ConversationState) {
	s.RetrievedDocuments = d.RetrievedDocuments
	s.WebSearchResults = d.WebSearchResults
}

// AnswerDelta is the output of synthesize and handle_chitchat.
type AnswerDelta struct {
	FinalAnswer string
	// Failed marks a degraded synthesis (apology substituted). The loop
	// terminates without reflecting on a failed synthesis.
	Failed bool
}

// Apply merges the delta into state.
func (d AnswerDelta) Apply(s *ConversationState) {
	s.FinalAnswer = d.FinalAnswer
}

// ReflectDelta is the reflect node's output.
type ReflectDelta struct {
	Evaluation Evaluation
}

// Apply merges the delta into state, appending to the eval history.
func (d ReflectDelta) Apply(s *ConversationState) {
	s.EvalVerdict = d.Evaluation.Verdict
	s.EvalHistory = append(s.EvalHistory, d.Evaluation)
}
