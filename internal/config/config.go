package config

import (
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		Host         string        `yaml:"host"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		IdleTimeout  time.Duration `yaml:"idle_timeout"`
	} `yaml:"server"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Workers struct {
		PoolSize      int           `yaml:"pool_size"`
		MaxRunning    int           `yaml:"max_running"`
		PollInterval  time.Duration `yaml:"poll_interval"`
		HeartbeatSec  int           `yaml:"heartbeat_sec"`
		StuckAfterSec int           `yaml:"stuck_after_sec"`
		RateLimit     int           `yaml:"rate_limit"` // LLM calls per minute
	} `yaml:"workers"`

	LLM struct {
		Provider        string        `yaml:"provider"`
		BaseURL         string        `yaml:"base_url"`
		APIKey          string        `yaml:"api_key"`
		Model           string        `yaml:"model"`
		MaxTokens       int           `yaml:"max_tokens"`
		Temperature     float32       `yaml:"temperature"`
		Timeout         time.Duration `yaml:"timeout"`
		BulkTimeout     time.Duration `yaml:"bulk_timeout"`
		BulkResumeChars int           `yaml:"bulk_resume_chars"`
	} `yaml:"llm"`

	Uploads struct {
		Dir string `yaml:"dir"`
	} `yaml:"uploads"`

	Remote struct {
		Repo         string        `yaml:"repo"`
		Token        string        `yaml:"token"`
		WorkDir      string        `yaml:"work_dir"`
		LockTimeout  time.Duration `yaml:"lock_timeout"`
		ReadOnly     bool          `yaml:"read_only"`
		StartInWrite bool          `yaml:"start_in_write"`
	} `yaml:"remote"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`

		Adapters []struct {
			Name    string                 `yaml:"name"`
			Type    string                 `yaml:"type"`
			Enabled bool                   `yaml:"enabled"`
			Options map[string]interface{} `yaml:"options"`
		} `yaml:"adapters"`
	} `yaml:"logging"`
}

// expandEnvVars expands environment variables in a string using ${VAR} or $VAR syntax
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return s
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	config := &Config{}

	// Set defaults
	config.Server.Port = 8080
	config.Server.Host = "0.0.0.0"
	config.Server.ReadTimeout = 30 * time.Second
	config.Server.WriteTimeout = 30 * time.Second
	config.Server.IdleTimeout = 60 * time.Second

	config.Store.Path = "data/resumatch.db"

	config.Workers.PoolSize = 2
	config.Workers.MaxRunning = 2
	config.Workers.PollInterval = 600 * time.Millisecond
	config.Workers.HeartbeatSec = 20
	config.Workers.StuckAfterSec = 180
	config.Workers.RateLimit = 60

	config.LLM.Provider = "claude"
	config.LLM.Model = "claude-3-haiku-20240307"
	config.LLM.MaxTokens = 8192
	config.LLM.Temperature = 0.1
	config.LLM.Timeout = 120 * time.Second
	config.LLM.BulkTimeout = 300 * time.Second
	config.LLM.BulkResumeChars = 12000

	config.Uploads.Dir = "data/uploads"

	config.Remote.WorkDir = "data/remote"
	config.Remote.LockTimeout = 12 * time.Hour

	config.Logging.Level = "info"
	config.Logging.Format = "json"

	// Load from YAML file if it exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			yamlContent := expandEnvVars(string(data))

			if err := yaml.Unmarshal([]byte(yamlContent), config); err != nil {
				return nil, err
			}
		}
	}

	// Override with environment variables
	config.loadFromEnv()

	return config, nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}

	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		c.Store.Path = dbPath
	}

	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		c.LLM.BaseURL = baseURL
	}

	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		c.LLM.APIKey = apiKey
	}

	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}

	if model := os.Getenv("LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}

	if timeoutSec := os.Getenv("LLM_TIMEOUT_SEC"); timeoutSec != "" {
		if sec, err := strconv.Atoi(timeoutSec); err == nil && sec > 0 {
			c.LLM.Timeout = time.Duration(sec) * time.Second
		}
	}

	if bulkTimeoutSec := os.Getenv("LLM_BULK_TIMEOUT_SEC"); bulkTimeoutSec != "" {
		if sec, err := strconv.Atoi(bulkTimeoutSec); err == nil && sec > 0 {
			c.LLM.BulkTimeout = time.Duration(sec) * time.Second
		}
	}

	if bulkChars := os.Getenv("LLM_BULK_RESUME_CHARS"); bulkChars != "" {
		if n, err := strconv.Atoi(bulkChars); err == nil && n > 0 {
			c.LLM.BulkResumeChars = n
		}
	}

	if pool := os.Getenv("JOB_WORKER_POOL"); pool != "" {
		if n, err := strconv.Atoi(pool); err == nil && n > 0 {
			c.Workers.PoolSize = n
			c.Workers.MaxRunning = n
		}
	}

	if hb := os.Getenv("RUN_HEARTBEAT_SEC"); hb != "" {
		if n, err := strconv.Atoi(hb); err == nil && n > 0 {
			c.Workers.HeartbeatSec = n
		}
	}

	if readOnly := os.Getenv("READ_ONLY"); readOnly != "" {
		c.Remote.ReadOnly = readOnly == "true" || readOnly == "1"
	}

	if writeMode := os.Getenv("WRITE_MODE"); writeMode != "" {
		c.Remote.StartInWrite = writeMode == "true" || writeMode == "1"
	}

	if repo := os.Getenv("REMOTE_REPO"); repo != "" {
		c.Remote.Repo = repo
	}

	if token := os.Getenv("REMOTE_TOKEN"); token != "" {
		c.Remote.Token = token
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}
}

// Heartbeat returns the worker heartbeat interval.
func (c *Config) Heartbeat() time.Duration {
	return time.Duration(c.Workers.HeartbeatSec) * time.Second
}

// StuckAfter returns the freshness horizon after which a running run with no
// log activity is reported as stuck.
func (c *Config) StuckAfter() time.Duration {
	return time.Duration(c.Workers.StuckAfterSec) * time.Second
}
