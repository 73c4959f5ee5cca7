package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultRedirectURI = "https://example.com"

type KommoConfig struct {
	Subdomain    string `yaml:"subdomain"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	AccessToken  string `yaml:"access_token"`
	// BaseURL overrides https://{subdomain}.kommo.com (proxies, tests).
	BaseURL             string `yaml:"base_url"`
	RetryOnUnauthorized bool   `yaml:"retry_on_unauthorized"`
}

// APIBase is the root of both the OAuth and the REST endpoints of the account.
func (k KommoConfig) APIBase() string {
	if k.BaseURL != "" {
		return strings.TrimRight(k.BaseURL, "/")
	}
	return "https://" + k.Subdomain + ".kommo.com"
}

type OpenAIConfig struct {
	APIKey       string  `yaml:"api_key"`
	Model        string  `yaml:"model"`
	BaseURL      string  `yaml:"base_url"`
	SystemPrompt string  `yaml:"system_prompt"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
}

type ArchiveConfig struct {
	Sinks       []string `yaml:"sinks"` // file, database, nats
	Dir         string   `yaml:"dir"`
	NatsURL     string   `yaml:"nats_url"`
	NatsSubject string   `yaml:"nats_subject"`
}

type Configuration struct {
	ApiPort   string `yaml:"api_port"`
	LogPath   string `yaml:"log_path"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "text" ou "json"

	Database    string `yaml:"database"` // "sqlite3" ou "postgres"
	DbPath      string `yaml:"db_path"`
	DbHost      string `yaml:"db_host"`
	DbPort      string `yaml:"db_port"`
	DbUser      string `yaml:"db_user"`
	DbName      string `yaml:"db_name"`
	DbPass      string `yaml:"db_pass"`
	AutoMigrate bool   `yaml:"automigrate"`

	TokenStore         string        `yaml:"token_store"` // file, database, memory
	TokenFile          string        `yaml:"token_file"`
	TokenCheckInterval time.Duration `yaml:"token_check_interval"`

	AdminToken  string   `yaml:"admin_token"`
	CORSOrigins []string `yaml:"cors_origins"` // vazio = qualquer origem

	Archive ArchiveConfig `yaml:"archive"`
	Kommo   KommoConfig   `yaml:"kommo"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Configuration {
	return Configuration{
		ApiPort:     "3000",
		LogLevel:    "info",
		LogFormat:   "text",
		Database:    "sqlite3",
		DbPath:      "db/database.db",
		AutoMigrate: true,
		TokenStore:  "file",
		TokenFile:   ".tokens.json",
		Archive: ArchiveConfig{
			Sinks:       []string{"file"},
			Dir:         "logs",
			NatsURL:     "nats://localhost:4222",
			NatsSubject: "kommo.webhook",
		},
		Kommo: KommoConfig{
			RedirectURI: DefaultRedirectURI,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Temperature: 0.7,
			MaxTokens:   500,
		},
	}
}

// Load builds the configuration: defaults, then the optional file at path
// (YAML or JSON), then environment variables. A .env file in the working
// directory is loaded first; variables already set in the process win.
func Load(path string) (Configuration, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Configuration{}, fmt.Errorf("cannot read .env: %w", err)
	}

	c := Defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Configuration{}, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Configuration{}, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	var errs []string
	applyEnv(&c, &errs)

	// defaults (pra evitar zero chato quando o arquivo zera algo)
	if c.ApiPort == "" {
		c.ApiPort = "3000"
	}
	if c.Kommo.RedirectURI == "" {
		c.Kommo.RedirectURI = DefaultRedirectURI
	}
	if c.TokenFile == "" {
		c.TokenFile = ".tokens.json"
	}
	if c.Archive.Dir == "" {
		c.Archive.Dir = "logs"
	}

	if err := Validate(c); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return c, fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return c, nil
}

func applyEnv(c *Configuration, errs *[]string) {
	setString(&c.ApiPort, "PORT")
	setString(&c.LogPath, "LOG_PATH")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")

	setString(&c.Database, "DATABASE")
	setString(&c.DbPath, "DB_PATH")
	setString(&c.DbHost, "DB_HOST")
	setString(&c.DbPort, "DB_PORT")
	setString(&c.DbUser, "DB_USER")
	setString(&c.DbName, "DB_NAME")
	setString(&c.DbPass, "DB_PASS")
	setBool(&c.AutoMigrate, "AUTOMIGRATE", errs)

	setString(&c.TokenStore, "TOKEN_STORE")
	setString(&c.TokenFile, "TOKEN_FILE")
	setDuration(&c.TokenCheckInterval, "TOKEN_CHECK_INTERVAL", errs)
	setString(&c.AdminToken, "ADMIN_TOKEN")
	if v := getenv("CORS_ORIGINS", ""); v != "" {
		c.CORSOrigins = splitList(v)
	}

	if v := getenv("ARCHIVE_SINKS", ""); v != "" {
		c.Archive.Sinks = splitList(v)
		if v == "none" {
			c.Archive.Sinks = nil
		}
	}
	setString(&c.Archive.Dir, "ARCHIVE_DIR")
	setString(&c.Archive.NatsURL, "NATS_URL")
	setString(&c.Archive.NatsSubject, "NATS_SUBJECT")

	setString(&c.Kommo.Subdomain, "KOMMO_SUBDOMAIN")
	setString(&c.Kommo.ClientID, "KOMMO_CLIENT_ID")
	setString(&c.Kommo.ClientSecret, "KOMMO_CLIENT_SECRET")
	setString(&c.Kommo.RedirectURI, "KOMMO_REDIRECT_URI")
	setString(&c.Kommo.AccessToken, "KOMMO_ACCESS_TOKEN")
	setString(&c.Kommo.BaseURL, "KOMMO_BASE_URL")
	setBool(&c.Kommo.RetryOnUnauthorized, "KOMMO_RETRY_ON_UNAUTHORIZED", errs)

	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.Model, "OPENAI_MODEL")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.OpenAI.SystemPrompt, "OPENAI_SYSTEM_PROMPT")
	if v := getenv("OPENAI_TEMPERATURE", ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, "OPENAI_TEMPERATURE must be a number")
		} else {
			c.OpenAI.Temperature = f
		}
	}
	if v := getenv("OPENAI_MAX_TOKENS", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, "OPENAI_MAX_TOKENS must be an integer")
		} else {
			c.OpenAI.MaxTokens = n
		}
	}
}

// Validate checks required credentials and enumerated values.
// Missing required values are reported together, by env var name.
func Validate(c Configuration) error {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"OPENAI_API_KEY", c.OpenAI.APIKey},
		{"KOMMO_SUBDOMAIN", c.Kommo.Subdomain},
		{"KOMMO_CLIENT_ID", c.Kommo.ClientID},
		{"KOMMO_CLIENT_SECRET", c.Kommo.ClientSecret},
		{"KOMMO_ACCESS_TOKEN", c.Kommo.AccessToken},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}

	var errs []string
	if len(missing) > 0 {
		errs = append(errs, "missing required variables: "+strings.Join(missing, ", "))
	}

	switch c.TokenStore {
	case "file", "database", "memory":
	default:
		errs = append(errs, "TOKEN_STORE must be one of: file, database, memory")
	}
	switch c.Database {
	case "sqlite3", "postgres", "postgresql":
	default:
		errs = append(errs, "DATABASE must be one of: sqlite3, postgres")
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, "LOG_FORMAT must be one of: text, json")
	}
	for _, s := range c.Archive.Sinks {
		switch s {
		case "file", "database", "nats":
		default:
			errs = append(errs, fmt.Sprintf("unknown archive sink: %s", s))
		}
	}
	if c.TokenCheckInterval < 0 {
		errs = append(errs, "TOKEN_CHECK_INTERVAL must not be negative")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// UsesDatabase reports whether any component needs the gorm connection.
func (c Configuration) UsesDatabase() bool {
	return c.TokenStore == "database" || c.ArchiveEnabled("database")
}

func (c Configuration) ArchiveEnabled(sink string) bool {
	for _, s := range c.Archive.Sinks {
		if s == sink {
			return true
		}
	}
	return false
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func setString(dst *string, key string) {
	if v := getenv(key, ""); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string, errs *[]string) {
	v := getenv(key, "")
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, key+" must be a boolean")
		return
	}
	*dst = b
}

func setDuration(dst *time.Duration, key string, errs *[]string) {
	v := getenv(key, "")
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, key+" must be a duration (ex: 30m)")
		return
	}
	*dst = d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
