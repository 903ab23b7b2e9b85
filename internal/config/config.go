package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

const appName = "ainewsletter"

type Config struct {
	Topics        Topics        `yaml:"topics"`
	Articles      Articles      `yaml:"articles"`
	Summarization Summarization `yaml:"summarization"`
	Output        Output        `yaml:"output"`
	Email         Email         `yaml:"email"`
	Archive       Archive       `yaml:"archive"`
	Server        Server        `yaml:"server"`
}

type Topics struct {
	List     []string `yaml:"list"`
	Trending Trending `yaml:"trending"`
}

type Trending struct {
	Provider  string        `yaml:"provider"` // "gnews" or "feed"
	APIKeyEnv string        `yaml:"api_key_env"`
	BaseURL   string        `yaml:"base_url"`
	Language  string        `yaml:"language"`
	Country   string        `yaml:"country"`
	Max       int           `yaml:"max"`
	FeedURL   string        `yaml:"feed_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Articles struct {
	APIKeyEnv        string        `yaml:"api_key_env"`
	BaseURL          string        `yaml:"base_url"`
	Language         string        `yaml:"language"`
	PageSize         int           `yaml:"page_size"`
	Timeout          time.Duration `yaml:"timeout"`
	FillDescriptions bool          `yaml:"fill_descriptions"`
}

type Summarization struct {
	Provider       string        `yaml:"provider"` // groq, openai, anthropic, ollama
	Model          string        `yaml:"model"`
	BaseURL        string        `yaml:"base_url"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	Temperature    float64       `yaml:"temperature"`
	MaxTokens      int           `yaml:"max_tokens"`
	Timeout        time.Duration `yaml:"timeout"`
	Retries        int           `yaml:"retries"`
	RenderMarkdown bool          `yaml:"render_markdown"`
}

type Output struct {
	DataDir        string `yaml:"data_dir"`
	NewsletterFile string `yaml:"newsletter_file"`
}

type Email struct {
	Enabled     bool          `yaml:"enabled"`
	Subject     string        `yaml:"subject"`
	SMTPHost    string        `yaml:"smtp_host"`
	SMTPPort    int           `yaml:"smtp_port"`
	SenderEnv   string        `yaml:"sender_env"`
	PasswordEnv string        `yaml:"password_env"`
	ReceiverEnv string        `yaml:"receiver_env"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Archive struct {
	Enabled bool `yaml:"enabled"`
}

type Server struct {
	Port int `yaml:"port"`
}

// MissingKeyError reports a required environment variable that is not set.
type MissingKeyError struct {
	Env     string
	Purpose string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing configuration: %s is not set (%s)", e.Env, e.Purpose)
}

// RequireEnv returns the value of the named environment variable, or a
// *MissingKeyError when it is unset or blank.
func RequireEnv(name, purpose string) (string, error) {
	if name == "" {
		return "", &MissingKeyError{Env: "<unnamed>", Purpose: purpose}
	}
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return "", &MissingKeyError{Env: name, Purpose: purpose}
	}
	return v, nil
}

// ConfigDir returns the XDG config directory for ainewsletter.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// DataDir returns the XDG data directory for ainewsletter.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/ainewsletter/config.yaml > ./config.yaml.
// An empty path with a nil error means no file exists and defaults apply.
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", nil
}

// Load reads and parses a config YAML file. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Topics: Topics{
			Trending: Trending{
				Provider:  "gnews",
				APIKeyEnv: "GNEWS_API_KEY",
				BaseURL:   "https://gnews.io",
				Language:  "en",
				Country:   "us",
				Max:       5,
				FeedURL:   "https://news.google.com/rss?hl=en-US&gl=US&ceid=US:en",
				Timeout:   30 * time.Second,
			},
		},
		Articles: Articles{
			APIKeyEnv:        "NEWSAPI_KEY",
			BaseURL:          "https://newsapi.org",
			Language:         "en",
			PageSize:         5,
			Timeout:          30 * time.Second,
			FillDescriptions: true,
		},
		Summarization: Summarization{
			Provider:    "groq",
			Temperature: 0.7,
			MaxTokens:   1024,
			Timeout:     30 * time.Second,
		},
		Output: Output{NewsletterFile: "newsletter.html"},
		Email: Email{
			Enabled:     true,
			Subject:     "Your AI-Powered Newsletter",
			SMTPHost:    "smtp.gmail.com",
			SMTPPort:    465,
			SenderEnv:   "SENDER_EMAIL",
			PasswordEnv: "SENDER_PASS",
			ReceiverEnv: "RECEIVER_EMAIL",
			Timeout:     30 * time.Second,
		},
		Archive: Archive{Enabled: true},
		Server:  Server{Port: 8000},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Summarization.Provider) {
	case "groq", "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("unknown summarization provider %q", c.Summarization.Provider)
	}
	switch strings.ToLower(c.Topics.Trending.Provider) {
	case "gnews", "feed":
	default:
		return fmt.Errorf("unknown trending provider %q", c.Topics.Trending.Provider)
	}
	if c.Articles.PageSize <= 0 || c.Articles.PageSize > 100 {
		return fmt.Errorf("articles.page_size must be between 1 and 100, got %d", c.Articles.PageSize)
	}
	if c.Summarization.Retries < 0 {
		return fmt.Errorf("summarization.retries must not be negative")
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}
