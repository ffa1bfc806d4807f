package reasoner

import (
	"time"

	"pdfsearch/internal/domain"
)

// Mode selects the generation style of a reasoning run.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeInsight  Mode = "insight"
)

// Stage is a named state of the reasoning workflow.
type Stage string

const (
	StageQueryAnalysis     Stage = "query_analysis"
	StageInitialRetrieval  Stage = "initial_retrieval"
	StageSelfReflection    Stage = "self_reflection"
	StageQueryRefinement   Stage = "query_refinement"
	StageAnswerGeneration  Stage = "answer_generation"
	StageInsightGeneration Stage = "insight_generation"
	StageConfidenceScoring Stage = "confidence_scoring"
	StageCritique          Stage = "critique"
	StageEnd               Stage = "end"
)

// Message is one chat-history turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RetrievalIteration records one retrieval pass.
type RetrievalIteration struct {
	Iteration  int     `json:"iteration"`
	Query      string  `json:"query"`
	NumResults int     `json:"num_results"`
	AvgScore   float64 `json:"avg_score"`
}

// Step is one entry of the visible reasoning trace.
type Step struct {
	Name      string    `json:"step"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
}

// ReliabilityScore qualifies how well the evidence supports the answer.
type ReliabilityScore struct {
	Score            int    `json:"score"`
	EvidenceStrength string `json:"evidence_strength"`
	Consensus        string `json:"consensus"`
}

// CritiqueReport is the structured output of the critique stage.
type CritiqueReport struct {
	MissingContext  []string `json:"missing_context"`
	AssumptionsMade []string `json:"assumptions_made"`
	Contradictions  []string `json:"contradictions"`
	LimitationsText string   `json:"limitations_text"`
}

// State is the mutable record threaded through one reasoning run. It is
// owned exclusively by that run; concurrent queries each get their own.
type State struct {
	Question    string
	ChatHistory []Message
	Mode        Mode

	// query analysis
	Complexity       string
	QueryType        string
	KeyEntities      []string
	RequiresMultiHop bool

	// retrieval
	Iterations      []RetrievalIteration
	Documents       []domain.ScoredChunk
	ReflectionNotes string
	NeedsRefinement bool
	RefinedQuery    string

	// generation and scoring
	Answer     string
	Confidence float64
	Sources    []string
	Steps      []Step

	// reliability layer
	TruthLabel  string
	Reliability ReliabilityScore
	Critique    CritiqueReport
}

func newState(question string, mode Mode, history []Message) *State {
	if mode != ModeInsight {
		mode = ModeStandard
	}
	return &State{
		Question:    question,
		ChatHistory: history,
		Mode:        mode,
		TruthLabel:  "uncertain",
	}
}

func (s *State) addStep(name, details string) {
	s.Steps = append(s.Steps, Step{Name: name, Timestamp: time.Now().UTC(), Details: details})
}

// routeAfterReflection decides the edge out of SelfReflection: refinement
// when flagged, otherwise the generation stage for the run's mode.
func routeAfterReflection(s *State) Stage {
	if s.NeedsRefinement {
		return StageQueryRefinement
	}
	return routeAfterRefinement(s)
}

// routeAfterRefinement picks the generation stage by mode.
func routeAfterRefinement(s *State) Stage {
	if s.Mode == ModeInsight {
		return StageInsightGeneration
	}
	return StageAnswerGeneration
}
