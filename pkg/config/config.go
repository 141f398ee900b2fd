package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Host        string   `yaml:"host"`
		Port        int      `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`

	Redis struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		DB       int    `yaml:"db"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"redis"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"database"`

	Embedding struct {
		APIKey    string `yaml:"api_key"`
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"embedding"`

	LLM struct {
		APIKey      string  `yaml:"api_key"`
		Model       string  `yaml:"model"`
		Temperature float64 `yaml:"temperature"`
		TopP        float64 `yaml:"top_p"`
		TopK        int     `yaml:"top_k"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"llm"`

	Session struct {
		TTLSeconds        int `yaml:"ttl_seconds"`
		MessageTTLSeconds int `yaml:"message_ttl_seconds"`
		MaxMessages       int `yaml:"max_messages"`
	} `yaml:"session"`

	News struct {
		SourcesPath          string  `yaml:"sources_path"`
		UpdateIntervalSec    int     `yaml:"update_interval_seconds"`
		MaxArticlesPerSource int     `yaml:"max_articles_per_source"`
		RequestDelaySeconds  float64 `yaml:"request_delay_seconds"`
	} `yaml:"news"`

	Chat struct {
		TopK      int  `yaml:"top_k"`
		Streaming bool `yaml:"streaming"`
	} `yaml:"chat"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/newschat/config.yaml"),
			"/etc/newschat/config.yaml",
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

	mergeWithEnv(&config)
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
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8000
	}
	if len(config.Server.CORSOrigins) == 0 {
		config.Server.CORSOrigins = []string{"http://localhost:3000"}
	}

	if config.Redis.Host == "" {
		config.Redis.Host = "localhost"
	}
	if config.Redis.Port == 0 {
		config.Redis.Port = 6379
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "news_articles"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Embedding.Model == "" {
		config.Embedding.Model = "jina-embeddings-v2-base-en"
	}
	if config.Embedding.BatchSize == 0 {
		config.Embedding.BatchSize = 20
	}

	if config.LLM.Model == "" {
		config.LLM.Model = "gemini-1.5-flash"
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.2
	}
	if config.LLM.TopP == 0 {
		config.LLM.TopP = 0.95
	}
	if config.LLM.TopK == 0 {
		config.LLM.TopK = 40
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 1024
	}

	if config.Session.TTLSeconds == 0 {
		config.Session.TTLSeconds = 3600
	}
	if config.Session.MessageTTLSeconds == 0 {
		config.Session.MessageTTLSeconds = 86400
	}
	if config.Session.MaxMessages == 0 {
		config.Session.MaxMessages = 100
	}

	if config.News.SourcesPath == "" {
		config.News.SourcesPath = "data/news_sources.json"
	}
	if config.News.MaxArticlesPerSource == 0 {
		config.News.MaxArticlesPerSource = 5
	}
	if config.News.RequestDelaySeconds == 0 {
		config.News.RequestDelaySeconds = 2.0
	}

	if config.Chat.TopK == 0 {
		config.Chat.TopK = 3
	}
}

func mergeWithEnv(config *Config) {
	if host := os.Getenv("API_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("API_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if origins := os.Getenv("BACKEND_CORS_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		config.Server.CORSOrigins = config.Server.CORSOrigins[:0]
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				config.Server.CORSOrigins = append(config.Server.CORSOrigins, trimmed)
			}
		}
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		config.Redis.Host = host
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Redis.Port = p
		}
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if d, err := strconv.Atoi(db); err == nil {
			config.Redis.DB = d
		}
	}
	if user := os.Getenv("REDIS_USERNAME"); user != "" {
		config.Redis.Username = user
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		config.Redis.Password = pass
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if table := os.Getenv("VECTOR_COLLECTION"); table != "" {
		config.Database.TableName = table
	}

	if key := os.Getenv("JINA_API_KEY"); key != "" {
		config.Embedding.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}

	if ttl := os.Getenv("SESSION_TTL"); ttl != "" {
		if t, err := strconv.Atoi(ttl); err == nil {
			config.Session.TTLSeconds = t
		}
	}
	if ttl := os.Getenv("MESSAGE_TTL"); ttl != "" {
		if t, err := strconv.Atoi(ttl); err == nil {
			config.Session.MessageTTLSeconds = t
		}
	}
	if max := os.Getenv("MAX_SESSION_MESSAGES"); max != "" {
		if m, err := strconv.Atoi(max); err == nil {
			config.Session.MaxMessages = m
		}
	}

	if path := os.Getenv("NEWS_SOURCES_PATH"); path != "" {
		config.News.SourcesPath = path
	}
	if interval := os.Getenv("NEWS_UPDATE_INTERVAL"); interval != "" {
		if i, err := strconv.Atoi(interval); err == nil {
			config.News.UpdateIntervalSec = i
		}
	}
}
