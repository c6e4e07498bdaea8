package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/openuspolitics/billtrace/internal/core/domain"
)

// Settings is the on-disk configuration shape. Field defaults mirror
// the documented pipeline defaults.
type Settings struct {
	// DataDir holds the SQLite database (default ~/.billtrace/data).
	DataDir string `toml:"data_dir"`

	// InboxDir is watched for new bill files when the watcher runs.
	InboxDir string `toml:"inbox_dir"`

	// Workers bounds how many bills are processed in parallel.
	Workers int `toml:"workers"`

	Chunker    ChunkerSettings    `toml:"chunker"`
	Retrieval  RetrievalSettings  `toml:"retrieval"`
	Generation GenerationSettings `toml:"generation"`
	Linker     LinkerSettings     `toml:"linker"`
	LLM        ProviderSettings   `toml:"llm"`
	Embedding  ProviderSettings   `toml:"embedding"`
}

// ChunkerSettings configures the document chunker.
type ChunkerSettings struct {
	ChunkSize         int     `toml:"chunk_size"`
	Overlap           int     `toml:"overlap"`
	BoundaryTolerance float64 `toml:"boundary_tolerance"`
}

// RetrievalSettings configures the hybrid retriever.
type RetrievalSettings struct {
	DenseWeight   float64 `toml:"dense_weight"`
	LexicalWeight float64 `toml:"lexical_weight"`
	TopK          int     `toml:"top_k"`
	DedupeOverlap int     `toml:"dedupe_overlap"`
}

// GenerationSettings configures the grounded analysis generator.
// RetryBaseDelay is a Go duration string, e.g. "2s".
type GenerationSettings struct {
	ContextBudget  int    `toml:"context_budget"`
	MaxAttempts    int    `toml:"max_attempts"`
	RetryBaseDelay string `toml:"retry_base_delay"`
}

// LinkerSettings configures the provenance linker.
type LinkerSettings struct {
	OverlapThreshold float64 `toml:"overlap_threshold"`
	PreferOrdered    bool    `toml:"prefer_ordered"`
}

// ProviderSettings selects and authenticates an external model service.
type ProviderSettings struct {
	// Provider is the adapter name: "anthropic", "openai" or "ollama".
	Provider string `toml:"provider"`

	// Model overrides the provider's default model.
	Model string `toml:"model"`

	// APIKey authenticates hosted providers. Unused for ollama.
	APIKey string `toml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `toml:"base_url"`
}

// DefaultSettings returns settings matching the documented defaults.
func DefaultSettings() Settings {
	cfg := domain.DefaultConfig()
	return Settings{
		Workers: cfg.Workers,
		Chunker: ChunkerSettings{
			ChunkSize:         cfg.Chunker.ChunkSize,
			Overlap:           cfg.Chunker.Overlap,
			BoundaryTolerance: cfg.Chunker.BoundaryTolerance,
		},
		Retrieval: RetrievalSettings{
			DenseWeight:   cfg.Retrieval.DenseWeight,
			LexicalWeight: cfg.Retrieval.LexicalWeight,
			TopK:          cfg.Retrieval.TopK,
			DedupeOverlap: cfg.Retrieval.DedupeOverlap,
		},
		Generation: GenerationSettings{
			ContextBudget:  cfg.Generation.ContextBudget,
			MaxAttempts:    cfg.Generation.MaxAttempts,
			RetryBaseDelay: cfg.Generation.RetryBaseDelay.String(),
		},
		Linker: LinkerSettings{
			OverlapThreshold: cfg.Linker.OverlapThreshold,
			PreferOrdered:    cfg.Linker.PreferOrdered,
		},
		LLM:       ProviderSettings{Provider: "anthropic"},
		Embedding: ProviderSettings{Provider: "openai"},
	}
}

// Pipeline converts the settings into the domain configuration handed
// to pipeline components.
func (s Settings) Pipeline() (domain.Config, error) {
	retryDelay := domain.DefaultRetryBaseDelay
	if s.Generation.RetryBaseDelay != "" {
		parsed, err := time.ParseDuration(s.Generation.RetryBaseDelay)
		if err != nil {
			return domain.Config{}, fmt.Errorf("%w: generation.retry_base_delay %q: %v",
				domain.ErrInvalidInput, s.Generation.RetryBaseDelay, err)
		}
		retryDelay = parsed
	}

	return domain.Config{
		Chunker: domain.ChunkerConfig{
			ChunkSize:         s.Chunker.ChunkSize,
			Overlap:           s.Chunker.Overlap,
			BoundaryTolerance: s.Chunker.BoundaryTolerance,
		},
		Retrieval: domain.RetrievalConfig{
			DenseWeight:   s.Retrieval.DenseWeight,
			LexicalWeight: s.Retrieval.LexicalWeight,
			TopK:          s.Retrieval.TopK,
			DedupeOverlap: s.Retrieval.DedupeOverlap,
		},
		Generation: domain.GenerationConfig{
			ContextBudget:  s.Generation.ContextBudget,
			MaxAttempts:    s.Generation.MaxAttempts,
			RetryBaseDelay: retryDelay,
		},
		Linker: domain.LinkerConfig{
			OverlapThreshold: s.Linker.OverlapThreshold,
			PreferOrdered:    s.Linker.PreferOrdered,
		},
		Workers: s.Workers,
	}, nil
}

// ConfigStore is a file-based configuration store using TOML.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	settings Settings
}

// NewConfigStore creates a TOML-based config store. If configDir is
// empty, defaults to ~/.billtrace/config.toml. A missing file yields
// the default settings without creating it.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".billtrace")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	s := &ConfigStore{
		filePath: filepath.Join(configDir, "config.toml"),
		settings: DefaultSettings(),
	}

	if err := s.Load(); err != nil {
		return nil, err
	}

	return s, nil
}

// Settings returns a copy of the current settings.
func (s *ConfigStore) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update applies fn to the settings and persists the result.
func (s *ConfigStore) Update(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.settings)
	return s.save()
}

// Save persists the current settings to disk.
func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// save writes settings to the TOML file (caller must hold lock).
func (s *ConfigStore) save() error {
	data, err := toml.Marshal(s.settings)
	if err != nil {
		return err
	}

	// Restricted permissions: the file may hold API keys.
	return os.WriteFile(s.filePath, data, 0600)
}

// Load reads settings from the TOML file. Missing keys keep their
// defaults; a missing file keeps all of them.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.settings = DefaultSettings()
			return nil
		}
		return err
	}

	settings := DefaultSettings()
	if err := toml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("parsing %s: %w", s.filePath, err)
	}

	s.settings = settings
	return nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}
