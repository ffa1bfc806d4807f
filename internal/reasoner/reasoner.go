// Package reasoner implements the adaptive reasoning workflow: a finite
// state machine of analysis, retrieval, reflection, bounded refinement,
// generation, deterministic confidence scoring and a reliability critique.
package reasoner

import (
	"fmt"
	"log"

	"pdfsearch/internal/domain"
	"pdfsearch/internal/memory"
)

// maxRetrievalIterations caps the refinement loop: at most one refinement
// pass after the initial retrieval.
const maxRetrievalIterations = 2

// Searcher retrieves hydrated, score-ordered chunks for a query.
type Searcher interface {
	Search(query string, topK int, fileFilter string) ([]domain.ScoredChunk, error)
}

// Controller runs reasoning workflows. LLM-backed stages never fail the
// run: each applies its own fallback on provider errors. Retrieval errors
// are genuine I/O failures and abort the run.
type Controller struct {
	searcher Searcher
	llm      domain.LLMClient
	memory   *memory.Log
}

// New creates a controller over the given retriever, LLM and interaction log.
func New(searcher Searcher, llm domain.LLMClient, mem *memory.Log) *Controller {
	return &Controller{searcher: searcher, llm: llm, memory: mem}
}

// Ask answers a question by driving the state machine to completion and
// returns the final state. The state is created here, owned by this call,
// and its summary is persisted to the interaction log during critique.
func (c *Controller) Ask(question string, mode Mode, history []Message) (*State, error) {
	state := newState(question, mode, history)

	stage := StageQueryAnalysis
	for stage != StageEnd {
		switch stage {
		case StageQueryAnalysis:
			c.analyzeQuery(state)
			stage = StageInitialRetrieval
		case StageInitialRetrieval:
			if err := c.initialRetrieval(state); err != nil {
				return nil, err
			}
			stage = StageSelfReflection
		case StageSelfReflection:
			c.reflect(state)
			stage = routeAfterReflection(state)
		case StageQueryRefinement:
			if err := c.refineQuery(state); err != nil {
				return nil, err
			}
			stage = routeAfterRefinement(state)
		case StageAnswerGeneration:
			c.generateAnswer(state)
			stage = StageConfidenceScoring
		case StageInsightGeneration:
			c.generateInsight(state)
			stage = StageConfidenceScoring
		case StageConfidenceScoring:
			scoreConfidence(state)
			stage = StageCritique
		case StageCritique:
			c.critique(state)
			stage = StageEnd
		default:
			return nil, fmt.Errorf("unknown reasoning stage %q", stage)
		}
	}
	return state, nil
}

// initialRetrieval searches with a top_k chosen from the analyzed
// complexity: simple 3, moderate 5, complex 8.
func (c *Controller) initialRetrieval(state *State) error {
	topK := 5
	switch state.Complexity {
	case "simple":
		topK = 3
	case "complex":
		topK = 8
	}
	docs, err := c.searcher.Search(state.Question, topK, "")
	if err != nil {
		return fmt.Errorf("initial retrieval: %w", err)
	}
	state.Documents = docs
	recordIteration(state, state.Question, docs)
	state.addStep("Initial Retrieval",
		fmt.Sprintf("Retrieved %d documents (avg score: %.3f)", len(docs), state.Iterations[len(state.Iterations)-1].AvgScore))
	return nil
}

// refineQuery re-runs retrieval with the reflection's suggestion appended
// to the original question and merges new documents in with exact-text
// deduplication. Clearing NeedsRefinement guarantees the loop cannot
// re-enter this stage.
func (c *Controller) refineQuery(state *State) error {
	defer func() { state.NeedsRefinement = false }()

	if state.RefinedQuery == "" {
		return nil
	}
	refined := state.Question + " " + state.RefinedQuery
	docs, err := c.searcher.Search(refined, 5, "")
	if err != nil {
		return fmt.Errorf("refined retrieval: %w", err)
	}
	existing := make(map[string]struct{}, len(state.Documents))
	for _, d := range state.Documents {
		existing[d.Text] = struct{}{}
	}
	added := 0
	for _, d := range docs {
		if _, dup := existing[d.Text]; dup {
			continue
		}
		state.Documents = append(state.Documents, d)
		existing[d.Text] = struct{}{}
		added++
	}
	recordIteration(state, refined, docs)
	state.addStep("Query Refinement", fmt.Sprintf("Refined query and retrieved %d additional documents", added))
	return nil
}

// scoreConfidence applies the deterministic confidence heuristic: 0 when
// there is no evidence or the answer reports failure, otherwise 0.6 times
// the average score of the top five documents plus source-count and
// complexity bonuses, capped at 0.95.
func scoreConfidence(state *State) {
	confidence := 0.0
	if len(state.Documents) > 0 && !answerReportsFailure(state.Answer) {
		n := len(state.Documents)
		if n > 5 {
			n = 5
		}
		sum := 0.0
		for _, d := range state.Documents[:n] {
			sum += d.Score
		}
		avg := sum / float64(n)
		confidence = avg * 0.6

		numSources := len(state.Sources)
		if numSources >= 3 {
			confidence += 0.2
		} else if numSources == 2 {
			confidence += 0.1
		}
		if (state.Complexity == "simple" && numSources >= 1) ||
			(state.Complexity == "complex" && numSources >= 3) {
			confidence += 0.1
		}
		if confidence > 0.95 {
			confidence = 0.95
		}
	}
	state.Confidence = confidence
	state.addStep("Confidence Scoring", fmt.Sprintf("Final confidence: %.0f%%", confidence*100))
}

func recordIteration(state *State, query string, docs []domain.ScoredChunk) {
	avg := 0.0
	if len(docs) > 0 {
		sum := 0.0
		for _, d := range docs {
			sum += d.Score
		}
		avg = sum / float64(len(docs))
	}
	state.Iterations = append(state.Iterations, RetrievalIteration{
		Iteration:  len(state.Iterations) + 1,
		Query:      query,
		NumResults: len(docs),
		AvgScore:   avg,
	})
}

// persist projects the finished run into the interaction log. Failures are
// logged, never surfaced: the answer is already computed.
func (c *Controller) persist(state *State) {
	if c.memory == nil {
		return
	}
	if _, err := c.memory.Add(state.Question, state.Answer, state.KeyEntities, state.Sources, state.Confidence); err != nil {
		log.Printf("warning: failed to persist interaction: %v", err)
	}
}
