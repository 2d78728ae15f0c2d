package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Auth      AuthConfig      `yaml:"auth"`
	Workflows WorkflowsConfig `yaml:"workflows"`
	Grafana   EndpointConfig  `yaml:"grafana" env-prefix:"OSCAR_GRAFANA_"`
	Security  SecurityConfig  `yaml:"security"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Audit     AuditConfig     `yaml:"audit"`
}

type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr" env:"OSCAR_LISTEN_ADDR" env-default:":3000"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"OSCAR_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

// UpstreamConfig holds the middleware base URLs. SkipTLSVerify disables
// certificate verification for every upstream.
type UpstreamConfig struct {
	MiddlewareURL string        `yaml:"middleware_url" env:"OSCAR_MIDDLEWARE_URL"`
	InventoryURL  string        `yaml:"inventory_url" env:"OSCAR_INVENTORY_URL"`
	MappingURL    string        `yaml:"mapping_url" env:"OSCAR_MAPPING_URL"`
	APIKey        string        `yaml:"api_key" env:"OSCAR_API_KEY"`
	SkipTLSVerify bool          `yaml:"skip_tls_verify" env:"OSCAR_SKIP_TLS_VERIFY"`
	Timeout       time.Duration `yaml:"timeout" env:"OSCAR_UPSTREAM_TIMEOUT" env-default:"30s"`
	LongTimeout   time.Duration `yaml:"long_timeout" env:"OSCAR_UPSTREAM_LONG_TIMEOUT" env-default:"90s"`
}

// AuthConfig configures the identity provider. BearerRole is the ACL role
// for callers that send their own Authorization header instead of a session
// cookie.
type AuthConfig struct {
	Issuer         string        `yaml:"issuer" env:"OSCAR_OIDC_ISSUER"`
	ClientID       string        `yaml:"client_id" env:"OSCAR_OIDC_CLIENT_ID"`
	ClientSecret   string        `yaml:"client_secret" env:"OSCAR_OIDC_CLIENT_SECRET"`
	RedirectURL    string        `yaml:"redirect_url" env:"OSCAR_OIDC_REDIRECT_URL"`
	PostLoginURL   string        `yaml:"post_login_url" env:"OSCAR_POST_LOGIN_URL" env-default:"/"`
	SessionTTL     time.Duration `yaml:"session_ttl" env:"OSCAR_SESSION_TTL" env-default:"8h"`
	InsecureCookie bool          `yaml:"insecure_cookie" env:"OSCAR_INSECURE_COOKIE"`
	BearerRole     string        `yaml:"bearer_role" env:"OSCAR_BEARER_ROLE" env-default:"operator"`
}

// Configured reports whether the identity provider settings are complete.
func (c AuthConfig) Configured() bool {
	return c.Issuer != "" && c.ClientID != "" && c.RedirectURL != ""
}

// WorkflowsConfig selects the workflow engine whose UI is embedded.
type WorkflowsConfig struct {
	Engine  string         `yaml:"engine" env:"OSCAR_WORKFLOW_ENGINE" env-default:"airflow"`
	Airflow EndpointConfig `yaml:"airflow" env-prefix:"OSCAR_AIRFLOW_"`
	NiFi    EndpointConfig `yaml:"nifi" env-prefix:"OSCAR_NIFI_"`
	MageAI  EndpointConfig `yaml:"mageai" env-prefix:"OSCAR_MAGEAI_"`
}

type EndpointConfig struct {
	Scheme string `yaml:"scheme" env:"SCHEME" env-default:"https"`
	Host   string `yaml:"host" env:"HOST"`
	Port   string `yaml:"port" env:"PORT"`
	Path   string `yaml:"path" env:"URL_PATH"`
}

// URL renders the endpoint, or "" when no host is configured.
func (e EndpointConfig) URL() string {
	if e.Host == "" {
		return ""
	}
	u := e.Scheme + "://" + e.Host
	if e.Port != "" {
		u += ":" + e.Port
	}
	if e.Path != "" {
		u += "/" + strings.TrimLeft(e.Path, "/")
	}
	return u
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key" env:"OSCAR_ENCRYPTION_KEY"`
}

type UploadsConfig struct {
	TempDir  string `yaml:"temp_dir" env:"OSCAR_UPLOAD_TEMP_DIR"`
	MaxBytes int64  `yaml:"max_bytes" env:"OSCAR_UPLOAD_MAX_BYTES" env-default:"52428800"`
}

// AuditConfig enables the journal of mutating requests when DSN is set.
// Records older than Retention are removed on PruneSchedule (cron syntax).
type AuditConfig struct {
	DSN           string        `yaml:"dsn" env:"OSCAR_AUDIT_DSN"`
	Retention     time.Duration `yaml:"retention" env:"OSCAR_AUDIT_RETENTION" env-default:"720h"`
	PruneSchedule string        `yaml:"prune_schedule" env:"OSCAR_AUDIT_PRUNE_SCHEDULE" env-default:"@daily"`
}

// Load reads the YAML file at path when it exists and applies environment
// variables on top. A missing file is not an error: the gateway is usually
// configured through the environment only.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		err := cleanenv.ReadConfig(path, &cfg)
		if err == nil {
			return &cfg, cfg.validate()
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return &cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Workflows.Engine {
	case "airflow", "nifi", "mageai":
	default:
		return fmt.Errorf("unknown workflow engine %q (want airflow, nifi or mageai)", c.Workflows.Engine)
	}
	if c.Upstream.Timeout <= 0 || c.Upstream.LongTimeout <= 0 {
		return errors.New("upstream timeouts must be positive")
	}
	if c.Audit.DSN != "" && c.Audit.PruneSchedule != "" {
		if _, err := cron.ParseStandard(c.Audit.PruneSchedule); err != nil {
			return fmt.Errorf("invalid audit prune schedule %q: %w", c.Audit.PruneSchedule, err)
		}
	}
	return nil
}

// WorkflowEngineURL returns the UI address of the selected engine.
func (c *Config) WorkflowEngineURL() string {
	switch c.Workflows.Engine {
	case "nifi":
		return c.Workflows.NiFi.URL()
	case "mageai":
		return c.Workflows.MageAI.URL()
	default:
		return c.Workflows.Airflow.URL()
	}
}
