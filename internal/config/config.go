package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/patgest/internal/patent"
)

type Config struct {
	Port string

	// Pathstore connection; an empty URL disables remote persistence.
	PathstoreURL    string
	PathstoreAPIKey string
	PathstorePrefix string

	// Auth
	PatgestAPIKey string

	// Extraction model
	ModelProvider   string // "anthropic" or "local"
	AnthropicAPIKey string
	AnthropicModel  string
	LocalModelURL   string

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentStore int

	// Upload limits
	MaxUploadBytes int64

	// Corpus parsing
	Marker           string
	Sections         []patent.SectionKind
	ParseConcurrency int
	KeepEmpty        bool

	// Extraction run defaults
	DataSection   patent.SectionKind
	ChunkSize     int
	MinTokens     int // Chunks estimated below this are not sent; 0 disables.
	Cooldown      time.Duration
	Sample        int
	Seed          uint64
	UnitBlacklist []string

	// Local result store; empty disables it.
	DBPath string

	MetricsEnabled bool

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

// Load reads the configuration from the environment, after loading an
// optional .env file from the working directory. Variables already set in
// the environment win over the file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "config: ignoring .env: %v\n", err)
	}

	cfg := Config{
		Port: envOr("PORT", "8090"),

		PathstoreURL:    os.Getenv("PATHSTORE_URL"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),
		PathstorePrefix: envOr("PATHSTORE_PREFIX", "patgest"),

		PatgestAPIKey: os.Getenv("PATGEST_API_KEY"),

		ModelProvider:   envOr("MODEL_PROVIDER", "anthropic"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		LocalModelURL:   os.Getenv("LOCAL_MODEL_URL"),

		WorkerCount:        envInt("WORKER_COUNT", 2),
		MaxQueueSize:       envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentStore: envInt("MAX_CONCURRENT_STORE", 10),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 524288000), // 500MB

		Marker:           envOr("CORPUS_MARKER", `<?xml version="1.0" encoding="UTF-8"?>`),
		Sections:         envSections("PATENT_SECTIONS", patent.DefaultSections),
		ParseConcurrency: envInt("PARSE_CONCURRENCY", 0),
		KeepEmpty:        envBool("KEEP_EMPTY_DOCUMENTS", false),

		DataSection:   envSection("DATA_SECTION", patent.SectionBriefSummary),
		ChunkSize:     envInt("CHUNK_SIZE", 1300),
		MinTokens:     envInt("MIN_CHUNK_TOKENS", 0),
		Cooldown:      envDuration("MODEL_COOLDOWN", 500*time.Millisecond),
		Sample:        envInt("SAMPLE_SIZE", 0),
		Seed:          envUint64("SAMPLE_SEED", 7),
		UnitBlacklist: envList("UNIT_BLACKLIST", nil),

		DBPath: envOr("PATGEST_DB", "patgest.db"),

		MetricsEnabled: envBool("METRICS_ENABLED", true),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentStore <= 0 {
		cfg.MaxConcurrentStore = 10
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 524288000
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1300
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	if cfg.Sample < 0 {
		cfg.Sample = 0
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// LoadEnvFile loads variables from path, overriding the environment.
func LoadEnvFile(path string) error {
	if err := godotenv.Overload(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings the HTTP service needs.
func (c Config) Validate() error {
	if c.PatgestAPIKey == "" {
		return fmt.Errorf("PATGEST_API_KEY is required")
	}
	if c.PathstoreURL != "" && c.PathstoreAPIKey == "" {
		return fmt.Errorf("PATHSTORE_API_KEY is required when PATHSTORE_URL is set")
	}
	if err := c.ValidateModel(); err != nil {
		return err
	}
	return c.ValidateCorpus()
}

// ValidateModel checks the extraction model settings.
func (c Config) ValidateModel() error {
	switch c.ModelProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "local":
		if c.LocalModelURL == "" {
			return fmt.Errorf("LOCAL_MODEL_URL is required for the local provider")
		}
	default:
		return fmt.Errorf("MODEL_PROVIDER must be anthropic or local, got %q", c.ModelProvider)
	}
	return nil
}

// ValidateCorpus checks the parsing and section settings.
func (c Config) ValidateCorpus() error {
	if c.Marker == "" {
		return fmt.Errorf("CORPUS_MARKER must not be empty")
	}
	if len(c.Sections) == 0 {
		return fmt.Errorf("PATENT_SECTIONS must name at least one section")
	}
	if !c.extractable(c.DataSection) {
		return fmt.Errorf("DATA_SECTION %q is neither abstract nor one of PATENT_SECTIONS %v", c.DataSection, c.Sections)
	}
	return nil
}

// SectionOverride resolves a per-run section name. Only the abstract and the
// configured PATENT_SECTIONS are accepted; anything else would select no
// paragraphs.
func (c Config) SectionOverride(s string) (patent.SectionKind, error) {
	k := ParseSection(s)
	if k == "" || !c.extractable(k) {
		return "", fmt.Errorf("unknown section %q: want abstract or one of %v", strings.TrimSpace(s), c.Sections)
	}
	return k, nil
}

func (c Config) extractable(k patent.SectionKind) bool {
	return k == patent.SectionAbstract || slices.Contains(c.Sections, k)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envUint64(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, keeping empty items only when
// quoted as "" so a blacklist can name the empty unit.
func envList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		switch item {
		case "":
			continue
		case `""`:
			item = ""
		}
		out = append(out, item)
	}
	return out
}

func envSection(key string, fallback patent.SectionKind) patent.SectionKind {
	if v := os.Getenv(key); v != "" {
		return ParseSection(v)
	}
	return fallback
}

func envSections(key string, fallback []patent.SectionKind) []patent.SectionKind {
	items := envList(key, nil)
	if len(items) == 0 {
		return fallback
	}
	out := make([]patent.SectionKind, 0, len(items))
	for _, item := range items {
		if item != "" {
			out = append(out, ParseSection(item))
		}
	}
	return out
}

// ParseSection resolves known aliases and otherwise keeps the name as a raw
// processing-instruction identifier.
func ParseSection(s string) patent.SectionKind {
	if k, ok := patent.ParseSectionKind(s); ok {
		return k
	}
	return patent.SectionKind(strings.TrimSpace(s))
}
