package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"pdfsearch/internal/chunker"
	"pdfsearch/internal/config"
	"pdfsearch/internal/domain"
	"pdfsearch/internal/embedding/hashing"
	embopenai "pdfsearch/internal/embedding/openai"
	"pdfsearch/internal/engine"
	"pdfsearch/internal/extract"
	llmopenai "pdfsearch/internal/llm/openai"
	"pdfsearch/internal/memory"
	"pdfsearch/internal/reasoner"
	"pdfsearch/internal/status"
	"pdfsearch/internal/store"
	"pdfsearch/internal/tui"
	memindex "pdfsearch/internal/vectorindex/memory"
	"pdfsearch/internal/vectorindex/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/pdfsearch/config.yaml if not provided)")
	flag.Parse()
	inputs := flag.Args()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Assemble components
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "hashing", "":
		dim := 0
		if cfg.Embedder.Hashing != nil {
			dim = cfg.Embedder.Hashing.Dimension
		}
		emb = hashing.NewEmbedder(dim)
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			log.Fatalf("openai embedder config missing")
		}
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Dimension: cfg.Embedder.OpenAI.Dimension,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatalf("openai embedder init failed: %v", err)
		}
		emb = client
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
	}

	ch, err := chunker.NewWindowChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		log.Fatalf("invalid chunking config: %v", err)
	}

	var index domain.VectorIndex
	switch cfg.VectorIndex.Type {
	case "memory", "":
		index = memindex.NewIndex()
	case "qdrant":
		if cfg.VectorIndex.Qdrant == nil {
			log.Fatalf("qdrant config missing")
		}
		index = qdrant.NewIndex(qdrant.Config{
			URL:        cfg.VectorIndex.Qdrant.URL,
			APIKey:     cfg.VectorIndex.Qdrant.APIKey,
			Collection: cfg.VectorIndex.Qdrant.Collection,
			Timeout:    time.Duration(cfg.VectorIndex.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		log.Fatalf("unknown vector index: %s", cfg.VectorIndex.Type)
	}

	dataDir := cfg.Storage.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("failed to create data dir %s: %v", dataDir, err)
	}

	eng := engine.New(
		extract.NewTextExtractor(),
		ch,
		emb,
		index,
		store.NewShadowStore(dataDir),
		store.NewStatsStore(dataDir),
		status.NewTracker(),
		cfg.Ingest.BatchSize,
	)

	llm := llmopenai.New(cfg.LLM.BaseURL, os.Getenv(cfg.LLM.APIKeyEnv), cfg.LLM.Model,
		time.Duration(cfg.LLM.TimeoutSecs)*time.Second)
	interactions := memory.NewLog(dataDir)
	controller := reasoner.New(eng, llm, interactions)

	// documents named on the command line are ingested in the background
	// while the session starts
	for _, input := range inputs {
		eng.QueueDocument(input)
	}
	go func() {
		for _, input := range inputs {
			if _, err := eng.Ingest(input); err != nil {
				log.Printf("ingest %s: %v", input, err)
			}
		}
	}()

	m := tui.New(eng, controller, interactions)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
