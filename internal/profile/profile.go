package profile

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev".
	Mode string
	// Addr is the binding address for server.
	Addr string
	// Port is the binding port for server.
	Port int
	// Data is the data directory.
	Data string
	// Driver is the knowledge store driver (postgres or sqlite).
	Driver string
	// DSN points to where sitechat stores its knowledge index.
	DSN string
	// Version is the current version of server.
	Version string

	// KnowledgeDir is the directory holding the knowledge base documents.
	KnowledgeDir string

	// OpenAI provider configuration.
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	ChatModel      string
	EmbeddingModel string

	// Session lifecycle.
	MaxRounds       int
	SessionTTL      time.Duration
	SessionCapacity int
	HistoryCap      int

	// Prompt assembly.
	DefaultLanguage     string
	PromptHistoryWindow int
	MaxContextTokens    int

	// Chunking and retrieval.
	ChunkTokenBudget int
	TopK             int
	SimilarityFloor  float64

	// HTTP surface.
	RateLimitPerMinute int
	CORSOrigins        []string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// FromViper builds a profile from the given viper instance, applying defaults
// for everything the environment does not set.
func FromViper(v *viper.Viper, version string) *Profile {
	v.SetDefault("mode", "dev")
	v.SetDefault("addr", "")
	v.SetDefault("port", 8000)
	v.SetDefault("data", "")
	v.SetDefault("driver", "sqlite")
	v.SetDefault("dsn", "")
	v.SetDefault("knowledge-dir", "./knowledge")
	v.SetDefault("openai-base-url", "https://api.openai.com/v1")
	v.SetDefault("chat-model", "gpt-4o-mini")
	v.SetDefault("embedding-model", "text-embedding-3-small")
	v.SetDefault("max-rounds", 5)
	v.SetDefault("session-ttl", 30*time.Minute)
	v.SetDefault("session-capacity", 1000)
	v.SetDefault("history-cap", 20)
	v.SetDefault("default-language", "zh")
	v.SetDefault("prompt-history-window", 4)
	v.SetDefault("max-context-tokens", 100000)
	v.SetDefault("chunk-token-budget", 1500)
	v.SetDefault("top-k", 5)
	v.SetDefault("similarity-floor", 0.7)
	v.SetDefault("rate-limit-per-minute", 3)
	v.SetDefault("cors-origins", []string{"http://localhost:3000", "http://localhost:3001"})

	return &Profile{
		Mode:                v.GetString("mode"),
		Addr:                v.GetString("addr"),
		Port:                v.GetInt("port"),
		Data:                v.GetString("data"),
		Driver:              v.GetString("driver"),
		DSN:                 v.GetString("dsn"),
		Version:             version,
		KnowledgeDir:        v.GetString("knowledge-dir"),
		OpenAIAPIKey:        v.GetString("openai-api-key"),
		OpenAIBaseURL:       v.GetString("openai-base-url"),
		ChatModel:           v.GetString("chat-model"),
		EmbeddingModel:      v.GetString("embedding-model"),
		MaxRounds:           v.GetInt("max-rounds"),
		SessionTTL:          v.GetDuration("session-ttl"),
		SessionCapacity:     v.GetInt("session-capacity"),
		HistoryCap:          v.GetInt("history-cap"),
		DefaultLanguage:     v.GetString("default-language"),
		PromptHistoryWindow: v.GetInt("prompt-history-window"),
		MaxContextTokens:    v.GetInt("max-context-tokens"),
		ChunkTokenBudget:    v.GetInt("chunk-token-budget"),
		TopK:                v.GetInt("top-k"),
		SimilarityFloor:     v.GetFloat64("similarity-floor"),
		RateLimitPerMinute:  v.GetInt("rate-limit-per-minute"),
		CORSOrigins:         v.GetStringSlice("cors-origins"),
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies.
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate checks the profile for configuration errors. Any error returned
// here is fatal at startup.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.OpenAIAPIKey == "" {
		return errors.New("openai api key is required")
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unknown knowledge store driver %q: only postgres and sqlite are supported", p.Driver)
	}
	if p.MaxRounds <= 0 {
		return errors.New("max rounds per session must be positive")
	}
	if p.SessionTTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if p.HistoryCap <= 0 {
		return errors.New("session history cap must be positive")
	}
	if p.ChunkTokenBudget <= 0 {
		return errors.New("chunk token budget must be positive")
	}
	if p.TopK <= 0 {
		return errors.New("retrieval top-k must be positive")
	}
	if p.SimilarityFloor < 0 || p.SimilarityFloor > 1 {
		return errors.New("similarity floor must be within [0, 1]")
	}
	if p.DefaultLanguage != "zh" && p.DefaultLanguage != "en" {
		return errors.Errorf("unsupported default language %q: only zh and en are supported", p.DefaultLanguage)
	}

	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		p.DSN = filepath.Join(dataDir, "sitechat_"+p.Mode+".db")
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}

	return nil
}
