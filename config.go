package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

//go:generate go run github.com/abice/go-enum --file=$GOFILE --names --nocase

// AppEnv represents the application environment
// ENUM(local,production,development,testing)
type AppEnv string

type Config struct {
	TgBotToken     string `koanf:"tg_bot_token"`
	TelegramAPIURL string `koanf:"telegram_api_url"`
	// ChatIDs is parsed manually below: env vars carry it as a comma list
	// that the struct unmarshal cannot decode into []int64.
	ChatIDs            []int64 `koanf:"-"`
	DBPath             string  `koanf:"db_path"`
	MaxPrice           int     `koanf:"max_price"`
	Rooms              int     `koanf:"rooms"`
	RouterAPIKey       string  `koanf:"router_api_key"`
	RouterBaseURL      string  `koanf:"router_base_url"`
	DestinationAddress string  `koanf:"destination_address"`
	RunTimeout         int     `koanf:"run_timeout"`    // seconds, whole-run ceiling
	MsgDelay           float64 `koanf:"msg_delay"`      // seconds between messages to one chat
	EnrichWorkers      int     `koanf:"enrich_workers"` // concurrent travel-time lookups
	AppEnv             AppEnv  `koanf:"app_env"`
}

func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	// Try to load config file from various formats
	configFiles := []string{
		"config.yaml",
		"config.yml",
		"config.json",
		"config.toml",
	}

	// Use lo.Find to find the first existing config file
	configFile, found := lo.Find(configFiles, func(file string) bool {
		_, err := os.Stat(file)
		return err == nil
	})

	if found {
		var parser koanf.Parser
		ext := filepath.Ext(configFile)

		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		case ".toml":
			parser = toml.Parser()
		default:
			return nil, oops.Errorf("unsupported config file extension: %s", ext)
		}

		if err := k.Load(file.Provider(configFile), parser); err != nil {
			return nil, oops.With("config_file", configFile).Wrap(err)
		}
	}

	// Load environment variables (they override config file values)
	// Convert TG_BOT_TOKEN -> tg_bot_token
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, oops.With("context", "loading environment variables").Wrap(err)
	}

	// Set defaults
	if !k.Exists("telegram_api_url") {
		k.Set("telegram_api_url", "https://api.telegram.org")
	}
	if !k.Exists("db_path") {
		k.Set("db_path", "./data/offers.db")
	}
	if !k.Exists("max_price") {
		k.Set("max_price", 50000)
	}
	if !k.Exists("rooms") {
		k.Set("rooms", 1)
	}
	if !k.Exists("router_base_url") {
		k.Set("router_base_url", "https://graphhopper.com/api/1")
	}
	if !k.Exists("run_timeout") {
		k.Set("run_timeout", 300)
	}
	if !k.Exists("msg_delay") {
		k.Set("msg_delay", 1.0)
	}
	if !k.Exists("enrich_workers") {
		k.Set("enrich_workers", 4)
	}
	if !k.Exists("app_env") {
		k.Set("app_env", "production")
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.With("context", "unmarshaling config").Wrap(err)
	}

	// Parse ChatIDs from comma-separated string if it's a string
	// koanf might return it as a string from env vars or as a slice from config files
	if chatIDs := k.Get("chat_ids"); chatIDs != nil {
		switch v := chatIDs.(type) {
		case string:
			cfg.ChatIDs = ParseChatIDs(v)
		case []interface{}:
			cfg.ChatIDs = lo.FilterMap(v, func(item interface{}, _ int) (int64, bool) {
				switch val := item.(type) {
				case int64:
					return val, true
				case int:
					return int64(val), true
				case float64:
					return int64(val), true
				default:
					return 0, false
				}
			})
		}
	}

	// Parse AppEnv from string if needed
	if appEnvStr := k.String("app_env"); appEnvStr != "" {
		if env, err := ParseAppEnv(appEnvStr); err == nil {
			cfg.AppEnv = env
		} else {
			cfg.AppEnv = AppEnvProduction
		}
	} else {
		cfg.AppEnv = AppEnvProduction
	}

	// Validate required fields
	if cfg.TgBotToken == "" {
		return nil, ErrMissingBotToken
	}
	if len(cfg.ChatIDs) == 0 {
		return nil, ErrMissingChatIDs
	}

	return &cfg, nil
}

// ParseChatIDs parses a comma-separated chat ID string into []int64 using lo
func ParseChatIDs(s string) []int64 {
	if s == "" {
		return []int64{}
	}
	parts := strings.Split(s, ",")
	return lo.FilterMap(parts, func(part string, _ int) (int64, bool) {
		part = strings.TrimSpace(part)
		if part == "" {
			return 0, false
		}
		var id int64
		if _, err := fmt.Sscanf(part, "%d", &id); err == nil {
			return id, true
		}
		return 0, false
	})
}

// RunTimeoutDuration returns the whole-run wall-clock ceiling.
func (c *Config) RunTimeoutDuration() time.Duration {
	return time.Duration(c.RunTimeout) * time.Second
}

// MsgDelayDuration returns the minimum pause between messages to one chat.
func (c *Config) MsgDelayDuration() time.Duration {
	return time.Duration(c.MsgDelay * float64(time.Second))
}

// EnrichmentEnabled reports whether travel-time lookups are configured.
func (c *Config) EnrichmentEnabled() bool {
	return c.RouterAPIKey != "" && c.DestinationAddress != ""
}
