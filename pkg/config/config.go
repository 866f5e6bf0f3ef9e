package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Discord   DiscordConfig   `json:"discord"`
	OpenAI    OpenAIConfig    `json:"openai"`
	Vector    VectorConfig    `json:"vector"`
	Retrieval RetrievalConfig `json:"retrieval"`
	Tracklog  TracklogConfig  `json:"tracklog"`
	Course    CourseConfig    `json:"course"`
}

type DiscordConfig struct {
	Token     string              `json:"token" env:"WORKSHOPBOT_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"WORKSHOPBOT_DISCORD_ALLOW_FROM"`
}

type OpenAIConfig struct {
	APIKey         string `json:"api_key" env:"WORKSHOPBOT_OPENAI_API_KEY"`
	APIBase        string `json:"api_base" env:"WORKSHOPBOT_OPENAI_API_BASE"`
	Model          string `json:"model" env:"WORKSHOPBOT_OPENAI_MODEL"`
	RoutingModel   string `json:"routing_model" env:"WORKSHOPBOT_OPENAI_ROUTING_MODEL"`
	EmbeddingModel string `json:"embedding_model" env:"WORKSHOPBOT_OPENAI_EMBEDDING_MODEL"`
	Proxy          string `json:"proxy,omitempty" env:"WORKSHOPBOT_OPENAI_PROXY"`
}

type VectorConfig struct {
	PostgresURL string `json:"postgres_url" env:"WORKSHOPBOT_VECTOR_POSTGRES_URL"`
	Dimensions  int    `json:"dimensions" env:"WORKSHOPBOT_VECTOR_DIMENSIONS"`
}

type RetrievalConfig struct {
	MaxWorkshops      int     `json:"max_workshops" env:"WORKSHOPBOT_RETRIEVAL_MAX_WORKSHOPS"`
	ChunksPerWorkshop int     `json:"chunks_per_workshop" env:"WORKSHOPBOT_RETRIEVAL_CHUNKS_PER_WORKSHOP"`
	ContentFraction   float64 `json:"content_fraction" env:"WORKSHOPBOT_RETRIEVAL_CONTENT_FRACTION"`
	SafetyFraction    float64 `json:"safety_fraction" env:"WORKSHOPBOT_RETRIEVAL_SAFETY_FRACTION"`
	MinContextTokens  int     `json:"min_context_tokens" env:"WORKSHOPBOT_RETRIEVAL_MIN_CONTEXT_TOKENS"`
	CacheSeconds      int     `json:"cache_seconds" env:"WORKSHOPBOT_RETRIEVAL_CACHE_SECONDS"`
}

type TracklogConfig struct {
	Path          string `json:"path" env:"WORKSHOPBOT_TRACKLOG_PATH"`
	RetentionDays int    `json:"retention_days" env:"WORKSHOPBOT_TRACKLOG_RETENTION_DAYS"`
	SweepCron     string `json:"sweep_cron" env:"WORKSHOPBOT_TRACKLOG_SWEEP_CRON"`
}

type CourseConfig struct {
	TopicsPath   string `json:"topics_path" env:"WORKSHOPBOT_COURSE_TOPICS_PATH"`
	MetadataPath string `json:"metadata_path" env:"WORKSHOPBOT_COURSE_METADATA_PATH"`
}

func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			Token:     "",
			AllowFrom: FlexibleStringSlice{},
		},
		OpenAI: OpenAIConfig{
			APIBase:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			RoutingModel:   "gpt-3.5-turbo",
			EmbeddingModel: "text-embedding-3-small",
		},
		Vector: VectorConfig{
			PostgresURL: "postgres://localhost:5432/workshopbot",
			Dimensions:  1536,
		},
		Retrieval: RetrievalConfig{
			MaxWorkshops:      2,
			ChunksPerWorkshop: 3,
			ContentFraction:   0.65,
			SafetyFraction:    0.10,
			MinContextTokens:  256,
			CacheSeconds:      300,
		},
		Tracklog: TracklogConfig{
			Path:          "~/.workshopbot/state/tracklog.db",
			RetentionDays: 90,
			SweepCron:     "0 4 * * *",
		},
		Course: CourseConfig{},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// TracklogPath returns the interaction log path with ~ expanded.
func (c *Config) TracklogPath() string {
	return expandHome(c.Tracklog.Path)
}

// APIBase returns the chat completions base URL, defaulting to api.openai.com.
func (c *Config) APIBase() string {
	if c.OpenAI.APIBase != "" {
		return c.OpenAI.APIBase
	}
	return "https://api.openai.com/v1"
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
