package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Category is one taxonomy bucket: an item is assigned the category when
// any include pattern appears in its text.
type Category struct {
	Name    string   `yaml:"name"`
	Include []string `yaml:"include"`
}

// DefaultAllowedDomains are the hosts the fetch proxy will retrieve from.
var DefaultAllowedDomains = []string{
	"eur-lex.europa.eu",
	"europa.eu",
	"europarl.europa.eu",
	"ec.europa.eu",
	"consilium.europa.eu",
	"curia.europa.eu",
	"edpb.europa.eu",
	"eba.europa.eu",
	"esma.europa.eu",
	"eiopa.europa.eu",
}

type Config struct {
	LLM struct {
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Extractor struct {
		ProxyURL       string `yaml:"proxy_url"`
		MaxLength      int    `yaml:"max_length"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		UserAgent      string `yaml:"user_agent"`
	} `yaml:"extractor"`

	Related struct {
		MaxResults int `yaml:"max_results"`
	} `yaml:"related"`

	Feeds    []string `yaml:"feeds"`
	Keywords []string `yaml:"keywords"`

	Taxonomy struct {
		Categories []Category `yaml:"categories"`
	} `yaml:"taxonomy"`

	Feed struct {
		MaxPerFeed    int     `yaml:"max_per_feed"`
		MaxTotal      int     `yaml:"max_total"`
		RateLimit     float64 `yaml:"rate_limit"`
		RetentionDays int     `yaml:"retention_days"`
	} `yaml:"feed"`

	Cache struct {
		Path string `yaml:"path"`
	} `yaml:"cache"`

	Server struct {
		Port           int      `yaml:"port"`
		AllowedDomains []string `yaml:"allowed_domains"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(xdg.ConfigHome, "lexwatch/config.yaml"),
			"/etc/lexwatch/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Extractor.MaxLength == 0 {
		config.Extractor.MaxLength = 50000
	}
	if config.Extractor.TimeoutSeconds == 0 {
		config.Extractor.TimeoutSeconds = 25
	}
	if config.Extractor.UserAgent == "" {
		config.Extractor.UserAgent = "Mozilla/5.0 (compatible; LexWatch/1.0)"
	}

	if config.Related.MaxResults == 0 {
		config.Related.MaxResults = 5
	}

	if config.Feed.MaxPerFeed == 0 {
		config.Feed.MaxPerFeed = 50
	}
	if config.Feed.MaxTotal == 0 {
		config.Feed.MaxTotal = 200
	}
	if config.Feed.RateLimit == 0 {
		config.Feed.RateLimit = 2.0
	}
	if config.Feed.RetentionDays == 0 {
		config.Feed.RetentionDays = 90
	}

	if config.Cache.Path == "" {
		config.Cache.Path = filepath.Join(xdg.DataHome, "lexwatch", "items.db")
	}

	if config.Server.Port == 0 {
		config.Server.Port = 5001
	}
	if len(config.Server.AllowedDomains) == 0 {
		config.Server.AllowedDomains = DefaultAllowedDomains
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if proxyURL := os.Getenv("LEXWATCH_PROXY_URL"); proxyURL != "" {
		config.Extractor.ProxyURL = proxyURL
	}
}
