package reasoner

import (
	"fmt"
	"log"
	"strings"

	"pdfsearch/internal/domain"
)

// analyzeQuery classifies complexity, query type, key entities and the
// multi-hop flag, conditioned on recent chat history and the interaction
// log. On LLM failure it falls back to a fixed moderate/factual
// classification so the workflow never stalls here.
func (c *Controller) analyzeQuery(state *State) {
	var analysis struct {
		Complexity       string   `json:"complexity"`
		QueryType        string   `json:"query_type"`
		KeyEntities      []string `json:"key_entities"`
		RequiresMultiHop bool     `json:"requires_multi_hop"`
	}

	memoryContext := ""
	if c.memory != nil {
		if ctx, err := c.memory.Context(3); err == nil {
			memoryContext = ctx
		}
	}

	var historyBlock strings.Builder
	history := state.ChatHistory
	if len(history) > 3 {
		history = history[len(history)-3:]
	}
	for _, msg := range history {
		historyBlock.WriteString(msg.Role)
		historyBlock.WriteString(": ")
		historyBlock.WriteString(msg.Content)
		historyBlock.WriteString("\n")
	}

	prompt := fmt.Sprintf(`You are a query analyzer for a document search system.

User Question: %q

Chat History:
%s

User Context (Previous Research):
%s

Analyze this question:

Determine:
1. complexity: "simple" (single fact), "moderate" (multiple facts), or "complex" (requires reasoning/synthesis)
2. query_type: "factual", "analytical", "comparative", or "exploratory"
3. key_entities: List of important terms/concepts
4. requires_multi_hop: true if needs multiple retrieval steps

Output JSON only.`, state.Question, historyBlock.String(), memoryContext)

	if err := c.llm.CompleteJSON(prompt, &analysis); err != nil {
		log.Printf("query analysis failed, using defaults: %v", err)
		analysis.Complexity = "moderate"
		analysis.QueryType = "factual"
		analysis.KeyEntities = nil
		analysis.RequiresMultiHop = false
	}
	if analysis.Complexity == "" {
		analysis.Complexity = "moderate"
	}
	if analysis.QueryType == "" {
		analysis.QueryType = "factual"
	}

	state.Complexity = analysis.Complexity
	state.QueryType = analysis.QueryType
	state.KeyEntities = analysis.KeyEntities
	state.RequiresMultiHop = analysis.RequiresMultiHop
	state.addStep("Query Analysis", fmt.Sprintf("Complexity: %s, Type: %s", state.Complexity, state.QueryType))
}

// reflect judges whether the retrieved evidence suffices. Zero documents
// force refinement; otherwise the LLM decides, and refinement is taken only
// while the retrieval iteration cap has not been reached.
func (c *Controller) reflect(state *State) {
	if len(state.Documents) == 0 {
		state.NeedsRefinement = true
		state.ReflectionNotes = "No relevant documents found"
		state.addStep("Self-Reflection", "No documents retrieved - needs refinement")
		return
	}

	var reflection struct {
		CanAnswer            bool    `json:"can_answer"`
		Confidence           float64 `json:"confidence"`
		MissingInfo          string  `json:"missing_info"`
		RefinementSuggestion string  `json:"refinement_suggestion"`
	}

	prompt := fmt.Sprintf(`You are evaluating if retrieved documents can answer a question.

Question: %s

Retrieved Documents:
%s

Can these documents answer the question adequately?

Respond with JSON:
{
    "can_answer": true/false,
    "confidence": 0.0-1.0,
    "missing_info": "what's missing if can't answer",
    "refinement_suggestion": "how to refine query if needed"
}`, state.Question, evidenceBlock(state.Documents, 3, 200, false))

	if err := c.llm.CompleteJSON(prompt, &reflection); err != nil {
		log.Printf("self-reflection failed, assuming evidence suffices: %v", err)
		reflection.CanAnswer = true
		reflection.Confidence = 0.7
		reflection.MissingInfo = ""
		reflection.RefinementSuggestion = ""
	}

	state.NeedsRefinement = !reflection.CanAnswer && len(state.Iterations) < maxRetrievalIterations
	state.ReflectionNotes = reflection.MissingInfo
	state.RefinedQuery = reflection.RefinementSuggestion
	state.addStep("Self-Reflection", fmt.Sprintf("Can answer: %t, Confidence: %.2f", reflection.CanAnswer, reflection.Confidence))
}

// generateAnswer asks the LLM to answer from a numbered, scored evidence
// block of up to five documents, with a stricter step-by-step prompt for
// complex questions.
func (c *Controller) generateAnswer(state *State) {
	if len(state.Documents) == 0 {
		state.Answer = "I couldn't find relevant information to answer your question."
		state.Confidence = 0
		state.Sources = nil
		return
	}

	var contextParts []string
	state.Sources = nil
	for i, doc := range topDocs(state.Documents, 5) {
		contextParts = append(contextParts,
			fmt.Sprintf("[Source %d: %s, Page %d, Score: %.3f]\n%s", i+1, doc.FileName, doc.Page, doc.Score, doc.Text))
		addSource(state, doc)
	}
	context := strings.Join(contextParts, "\n\n")

	var prompt string
	if state.Complexity == "complex" {
		prompt = fmt.Sprintf(`You are an AI assistant that provides detailed, well-reasoned answers.

Question: %s

Context from documents:
%s

Instructions:
1. Think step-by-step about how to answer this question
2. Synthesize information from multiple sources
3. Provide a comprehensive answer with clear reasoning
4. Cite sources using [Source X] notation

Answer:`, state.Question, context)
	} else {
		prompt = fmt.Sprintf(`You are an AI assistant that provides clear, accurate answers.

Question: %s

Context:
%s

Provide a concise answer using only the information above. Cite sources with [Source X].

Answer:`, state.Question, context)
	}

	answer, err := c.llm.Complete(prompt)
	if err != nil {
		log.Printf("answer generation failed: %v", err)
		answer = "I was unable to generate an answer from the retrieved evidence."
	}
	state.Answer = answer
	state.addStep("Answer Generation", fmt.Sprintf("Generated answer using %d documents", len(state.Documents)))
}

// generateInsight produces a structured analytical report from up to seven
// documents instead of a direct answer.
func (c *Controller) generateInsight(state *State) {
	if len(state.Documents) == 0 {
		state.Answer = "Insufficient information to generate insights."
		state.Confidence = 0
		state.Sources = nil
		return
	}

	var contextParts []string
	state.Sources = nil
	for i, doc := range topDocs(state.Documents, 7) {
		contextParts = append(contextParts, fmt.Sprintf("[Source %d: %s]\n%s", i+1, doc.FileName, doc.Text))
		addSource(state, doc)
	}

	prompt := fmt.Sprintf(`You are a strategic analyst and concept reliability engine.

Topic: %s

Context:
%s

Task: Generate a "Deep Insight Report". Do NOT just summarize.
Structure your response as:

### 1. Core Synthesis
(What is the fundamental truth here?)

### 2. Hidden Themes & Patterns
(What connects these documents that isn't obvious?)

### 3. Strategic Implications
(Why does this matter? What are the second-order effects?)

### 4. Conceptual Relationships
(How do these ideas map to broader concepts?)

Provide a sophisticated, professional analysis.`, state.Question, strings.Join(contextParts, "\n\n"))

	answer, err := c.llm.Complete(prompt)
	if err != nil {
		log.Printf("insight generation failed: %v", err)
		answer = "I was unable to generate insights from the retrieved evidence."
	}
	state.Answer = answer
	state.addStep("Insight Generation", fmt.Sprintf("Synthesized insights from %d documents", len(state.Documents)))
}

// critique evaluates the generated answer against its evidence, assigns a
// truth label and reliability score, optionally appends a limitations note,
// and persists the completed interaction exactly once.
func (c *Controller) critique(state *State) {
	if len(state.Documents) == 0 || answerReportsFailure(state.Answer) {
		state.TruthLabel = "uncertain"
		state.Reliability = ReliabilityScore{Score: 0, EvidenceStrength: "none"}
		state.Critique = CritiqueReport{MissingContext: []string{"No documents found"}}
		state.addStep("Reliability Critique", "Truth Label: UNCERTAIN, no evidence to evaluate")
		return
	}

	var result struct {
		TruthLabel  string           `json:"truth_label"`
		Reliability ReliabilityScore `json:"reliability_score"`
		Critique    CritiqueReport   `json:"critique"`
	}

	prompt := fmt.Sprintf(`You are a strict fact-checker and critical evaluator.

Question: %s

Answer Generated: %s

Source Evidence:
%s

Task: Evaluate the answer's reliability.
1. Does the evidence support the claims? (0-100 score)
2. Are there any contradictions between sources?
3. Assign a Truth Label: "well-supported", "conditionally-supported", "disputed", or "uncertain".

Output JSON:
{
    "truth_label": "label",
    "reliability_score": {
        "score": 0-100,
        "evidence_strength": "high/medium/low",
        "consensus": "high/medium/low/conflict"
    },
    "critique": {
        "missing_context": [],
        "assumptions_made": [],
        "contradictions": [],
        "limitations_text": "text to append if needed"
    }
}`, state.Question, state.Answer, evidenceBlock(state.Documents, 3, 300, true))

	if err := c.llm.CompleteJSON(prompt, &result); err != nil {
		log.Printf("critique failed, using neutral fallback: %v", err)
		result.TruthLabel = "uncertain"
		result.Reliability = ReliabilityScore{Score: 50, EvidenceStrength: "medium", Consensus: "medium"}
		result.Critique = CritiqueReport{MissingContext: []string{"Critique generation failed"}}
	}
	if result.TruthLabel == "" {
		result.TruthLabel = "uncertain"
	}

	if result.TruthLabel != "well-supported" && result.Critique.LimitationsText != "" {
		state.Answer += "\n\n**Limitations & Critical Analysis:**\n" + result.Critique.LimitationsText
	}

	state.TruthLabel = result.TruthLabel
	state.Reliability = result.Reliability
	state.Critique = result.Critique

	c.persist(state)
	state.addStep("Reliability Critique", fmt.Sprintf("Truth Label: %s, saved to memory", strings.ToUpper(state.TruthLabel)))
}

func answerReportsFailure(answer string) bool {
	return strings.Contains(strings.ToLower(answer), "couldn't find")
}

func topDocs(docs []domain.ScoredChunk, n int) []domain.ScoredChunk {
	if len(docs) > n {
		return docs[:n]
	}
	return docs
}

func addSource(state *State, doc domain.ScoredChunk) {
	source := fmt.Sprintf("%s (Page %d)", doc.FileName, doc.Page)
	for _, s := range state.Sources {
		if s == source {
			return
		}
	}
	state.Sources = append(state.Sources, source)
}

// evidenceBlock renders up to maxDocs documents with their text truncated
// to maxRunes, as prompt context for reflection and critique.
func evidenceBlock(docs []domain.ScoredChunk, maxDocs, maxRunes int, bracket bool) string {
	var parts []string
	for i, doc := range topDocs(docs, maxDocs) {
		text := doc.Text
		if runes := []rune(text); len(runes) > maxRunes {
			text = string(runes[:maxRunes]) + "..."
		}
		if bracket {
			parts = append(parts, fmt.Sprintf("[Source %d]: %s", i+1, text))
		} else {
			parts = append(parts, fmt.Sprintf("Doc %d: %s", i+1, text))
		}
	}
	return strings.Join(parts, "\n\n")
}
