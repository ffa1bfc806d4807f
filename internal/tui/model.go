package tui

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdfsearch/internal/domain"
	"pdfsearch/internal/engine"
	"pdfsearch/internal/memory"
	"pdfsearch/internal/reasoner"
	"pdfsearch/internal/store"
)

// EnginePort is the TUI-facing subset of the search engine.
type EnginePort interface {
	Ingest(source string) (string, error)
	Search(query string, topK int, fileFilter string) ([]domain.ScoredChunk, error)
	Summarize(fileName string, maxSentences int) (string, error)
	Documents() ([]engine.DocumentInfo, error)
	Info() (*store.IndexStats, error)
	Reset() error
}

// AskerPort runs a reasoning query.
type AskerPort interface {
	Ask(question string, mode reasoner.Mode, history []reasoner.Message) (*reasoner.State, error)
}

// Model is the Bubble Tea model for the interactive session. Plain input
// asks a question through the reasoning workflow; slash commands drive
// search, ingestion and index maintenance.
type Model struct {
	engine       EnginePort
	asker        AskerPort
	interactions *memory.Log
	input        textinput.Model
	viewport     viewport.Model
	history      []reasoner.Message
	results      []domain.ScoredChunk
	content      string
	status       string
	cursor       int
	ready        bool
	lastQuery    string
}

// New creates a new TUI model instance. interactions receives compact
// records of searches and summaries; the asker persists its own runs.
func New(eng EnginePort, asker AskerPort, interactions *memory.Log) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /help for commands"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		engine:       eng,
		asker:        asker,
		interactions: interactions,
		input:        ti,
		viewport:     vp,
		content:      helpText,
		status:       "Ready.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 1
		totalFooterLines := 1
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderContent())
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line != "" {
				m.input.SetValue("")
				m = m.execute(line)
				m.viewport.SetContent(m.renderContent())
				m.viewport.GotoTop()
				return m, nil
			}
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderContent())
				return m, nil
			}
			m.viewport.LineDown(1)
			return m, nil
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderContent())
				return m, nil
			}
			m.viewport.LineUp(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// execute runs one input line: a slash command or a reasoning question.
func (m Model) execute(line string) Model {
	m.results = nil
	if !strings.HasPrefix(line, "/") {
		return m.ask(line, reasoner.ModeStandard)
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/help":
		m.content = helpText
		m.status = "Ready."
	case "/insight":
		if arg == "" {
			m.status = "Usage: /insight <topic>"
			return m
		}
		return m.ask(arg, reasoner.ModeInsight)
	case "/search":
		if arg == "" {
			m.status = "Usage: /search <query>"
			return m
		}
		results, err := m.engine.Search(arg, 10, "")
		if err != nil {
			m.status = "Error: " + err.Error()
			return m
		}
		m.results = results
		m.cursor = 0
		m.lastQuery = arg
		m.status = fmt.Sprintf("Results for %q (up/down to browse)", arg)
		m.recordSearch(arg, results)
	case "/ingest":
		if arg == "" {
			m.status = "Usage: /ingest <file or directory>"
			return m
		}
		msg, err := m.engine.Ingest(arg)
		if err != nil {
			m.status = "Error: " + err.Error()
			return m
		}
		m.content = msg
		m.status = "Ingestion complete."
	case "/summarize":
		file, nStr, _ := strings.Cut(arg, " ")
		if file == "" {
			m.status = "Usage: /summarize <file> [sentences]"
			return m
		}
		n := 5
		if v, err := strconv.Atoi(strings.TrimSpace(nStr)); err == nil {
			n = v
		}
		summary, err := m.engine.Summarize(file, n)
		if err != nil {
			m.status = "Error: " + err.Error()
			return m
		}
		m.content = headingStyle.Render("Summary of "+file) + "\n\n" + summary
		m.status = "Ready."
		m.recordInteraction("Summarize "+file, summary, []string{file})
	case "/info":
		stats, err := m.engine.Info()
		if err != nil {
			m.status = "Error: " + err.Error()
			return m
		}
		if stats == nil {
			m.content = "Index is empty."
		} else {
			m.content = headingStyle.Render("Index info") + "\n\n" +
				fmt.Sprintf("Documents: %d\nChunks: %d\nEmbedding model: %s (dim %d)",
					len(stats.Files), stats.TotalChunks, stats.EmbeddingModel, stats.EmbeddingDimension)
		}
		m.status = "Ready."
	case "/docs":
		docs, err := m.engine.Documents()
		if err != nil {
			m.status = "Error: " + err.Error()
			return m
		}
		if len(docs) == 0 {
			m.content = "No documents ingested yet."
		} else {
			var b strings.Builder
			b.WriteString(headingStyle.Render("Ingested documents") + "\n\n")
			for _, d := range docs {
				fmt.Fprintf(&b, "%s: %d chunks over %d page(s)\n", d.FileName, d.Chunks, d.Pages)
			}
			m.content = b.String()
		}
		m.status = "Ready."
	case "/reset":
		if err := m.engine.Reset(); err != nil {
			m.status = "Error: " + err.Error()
			return m
		}
		m.content = "Index reset."
		m.status = "Ready."
	case "/history":
		return m.historyCommand(arg)
	case "/rename":
		id, title, _ := strings.Cut(arg, " ")
		title = strings.TrimSpace(title)
		if id == "" || title == "" {
			m.status = "Usage: /rename <id> <new title>"
			return m
		}
		if err := m.interactions.Rename(id, title); err != nil {
			m.status = "Error: " + err.Error()
			return m
		}
		m.content = "Renamed " + id + "."
		m.status = "Ready."
	case "/forget":
		if arg == "" {
			m.status = "Usage: /forget <id>"
			return m
		}
		if err := m.interactions.Delete(arg); err != nil {
			m.status = "Error: " + err.Error()
			return m
		}
		m.content = "Deleted " + arg + "."
		m.status = "Ready."
	case "/clear":
		m.history = nil
		m.content = "Chat history cleared."
		m.status = "Ready."
	default:
		m.status = "Unknown command " + cmd + " (try /help)"
	}
	return m
}

func (m Model) ask(question string, mode reasoner.Mode) Model {
	m.status = "Thinking..."
	state, err := m.asker.Ask(question, mode, m.history)
	if err != nil {
		m.status = "Error: " + err.Error()
		return m
	}
	m.history = append(m.history,
		reasoner.Message{Role: "user", Content: question},
		reasoner.Message{Role: "assistant", Content: state.Answer},
	)
	m.content = renderAnswer(state)
	m.status = fmt.Sprintf("Confidence %.0f%% | %s", state.Confidence*100, state.TruthLabel)
	return m
}

// historyCommand lists the interaction log, or wipes it with "clear".
func (m Model) historyCommand(arg string) Model {
	if arg == "clear" {
		if err := m.interactions.Clear(); err != nil {
			m.status = "Error: " + err.Error()
			return m
		}
		m.content = "Interaction history cleared."
		m.status = "Ready."
		return m
	}
	entries, err := m.interactions.All()
	if err != nil {
		m.status = "Error: " + err.Error()
		return m
	}
	if len(entries) == 0 {
		m.content = "No interactions recorded yet."
		m.status = "Ready."
		return m
	}
	var b strings.Builder
	b.WriteString(headingStyle.Render("Interaction history") + "\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s  %s\n", dimStyle.Render(e.ID), e.Title)
	}
	b.WriteString("\n" + dimStyle.Render("/rename <id> <title> | /forget <id> | /history clear"))
	m.content = b.String()
	m.status = "Ready."
	return m
}

// recordSearch logs a plain search as a compact interaction entry.
func (m Model) recordSearch(query string, results []domain.ScoredChunk) {
	if len(results) == 0 {
		return
	}
	snippet := results[0].Text
	if runes := []rune(snippet); len(runes) > 200 {
		snippet = string(runes[:200]) + "..."
	}
	var sources []string
	for _, r := range results {
		sources = appendUnique(sources, r.FileName)
	}
	answer := fmt.Sprintf("Found %d results. Top result: %s", len(results), snippet)
	m.recordInteraction("Search: "+query, answer, sources)
}

func (m Model) recordInteraction(question, answer string, sources []string) {
	if m.interactions == nil {
		return
	}
	if _, err := m.interactions.Add(question, answer, nil, sources, 0); err != nil {
		log.Printf("failed to save interaction: %v", err)
	}
}

func appendUnique(values []string, v string) []string {
	for _, x := range values {
		if x == v {
			return values
		}
	}
	return append(values, v)
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("PDF Search")
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	body := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) renderContent() string {
	if len(m.results) > 0 {
		r := m.results[m.cursor]
		title := fmt.Sprintf("Result %d/%d  %s p.%d  score=%.3f",
			m.cursor+1, len(m.results), r.FileName, r.Page, r.Score)
		body := highlightBestSentence(r.Text, m.lastQuery)
		return title + "\n\n" + body
	}
	return m.content
}

func renderAnswer(state *reasoner.State) string {
	var b strings.Builder
	b.WriteString(state.Answer)
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Truth label: %s | Reliability: %d/100 (%s evidence)",
		state.TruthLabel, state.Reliability.Score, state.Reliability.EvidenceStrength)))
	if len(state.Sources) > 0 {
		b.WriteString("\n" + headingStyle.Render("Sources") + "\n")
		for _, s := range state.Sources {
			b.WriteString("- " + s + "\n")
		}
	}
	if len(state.Steps) > 0 {
		b.WriteString("\n" + headingStyle.Render("Reasoning trace") + "\n")
		for _, step := range state.Steps {
			b.WriteString(dimStyle.Render("- "+step.Name+": "+step.Details) + "\n")
		}
	}
	return b.String()
}

const helpText = `Type a question to ask the document corpus.

Commands:
  /insight <topic>               deep analytical report instead of an answer
  /search <query>                raw similarity search (up/down to browse hits)
  /ingest <file or directory>    ingest documents into the index
  /summarize <file> [sentences]  extractive summary of an ingested document
  /docs                          list ingested documents
  /info                          aggregate index statistics
  /history [clear]               list (or wipe) the interaction history
  /rename <id> <title>           rename an interaction-history entry
  /forget <id>                   delete an interaction-history entry
  /reset                         delete the index and all local state
  /clear                         clear the chat history`

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	headingStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
