// backend/internal/infra/config/config.go
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

// Config はアプリケーション全体の設定を保持します。
//
// Sources, lowest priority first:
//  1. defaults
//  2. YAML file named by BOOKNEST_CONFIG (optional)
//  3. environment (a .env file in the working directory is loaded first)
//
// Any string value of the form "sm://<secret>" is resolved later by
// ResolveSecrets.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`
	LogDev   bool   `yaml:"logDev"`

	// GCP
	ProjectID       string `yaml:"projectId"`
	CredentialsFile string `yaml:"credentialsFile"`

	// Remote document store: "firestore", "mongodb" or "none".
	Remote        string `yaml:"remote"`
	MongoURI      string `yaml:"mongoUri"`
	MongoDatabase string `yaml:"mongoDatabase"`

	// Local store: "file", "sqlite", "postgres" or "memory".
	Local       string `yaml:"local"`
	LocalDir    string `yaml:"localDir"`
	SQLitePath  string `yaml:"sqlitePath"`
	PostgresDSN string `yaml:"postgresDsn"`
	LocalWatch  bool   `yaml:"localWatch"`

	FlushMode        string `yaml:"flushMode"`
	FlushMaxAttempts int    `yaml:"flushMaxAttempts"`

	// Payment proofs: a bucket, or UploadDir when the bucket is empty.
	GCSBucket string `yaml:"gcsBucket"`
	UploadDir string `yaml:"uploadDir"`

	// Auth
	JWTSecret     string        `yaml:"jwtSecret"`
	SessionTTL    time.Duration `yaml:"sessionTtl"`
	FirebaseAuth  bool          `yaml:"firebaseAuth"`
	RequireCode   bool          `yaml:"requireVerificationCode"`
	AdminEmail    string        `yaml:"adminEmail"`
	AdminName     string        `yaml:"adminName"`
	AdminPassword string        `yaml:"adminPassword"`

	// Mail
	SendGridAPIKey string `yaml:"sendgridApiKey"`
	SendGridFrom   string `yaml:"sendgridFrom"`
	StoreName      string `yaml:"storeName"`

	CORSOrigins []string `yaml:"corsOrigins"`

	// Background loops
	AdminPollInterval  time.Duration `yaml:"adminPollInterval"`
	UserPollInterval   time.Duration `yaml:"userPollInterval"`
	TicketPollInterval time.Duration `yaml:"ticketPollInterval"`
	ProbeInterval      time.Duration `yaml:"probeInterval"`
	QuotaInterval      time.Duration `yaml:"quotaInterval"`
	QuotaCapacityBytes int64         `yaml:"quotaCapacityBytes"`
	PenaltySweepEvery  time.Duration `yaml:"penaltySweepInterval"`
}

// Remote / local backends
const (
	RemoteFirestore = "firestore"
	RemoteMongo     = "mongodb"
	RemoteNone      = "none"

	LocalFile     = "file"
	LocalSQLite   = "sqlite"
	LocalPostgres = "postgres"
	LocalMemory   = "memory"
)

// SecretScheme marks values that live in Secret Manager.
const SecretScheme = "sm://"

func defaults() *Config {
	return &Config{
		Port:               "8080",
		LogLevel:           "info",
		Remote:             RemoteNone,
		MongoDatabase:      "booknest",
		Local:              LocalFile,
		LocalDir:           "data/local",
		SQLitePath:         "data/booknest.db",
		LocalWatch:         true,
		FlushMode:          "requeue",
		FlushMaxAttempts:   5,
		UploadDir:          "data/uploads",
		SessionTTL:         24 * time.Hour,
		StoreName:          "BookNest",
		CORSOrigins:        []string{"*"},
		AdminPollInterval:  5 * time.Second,
		UserPollInterval:   5 * time.Second,
		TicketPollInterval: 10 * time.Second,
		ProbeInterval:      15 * time.Second,
		QuotaInterval:      5 * time.Minute,
		PenaltySweepEvery:  10 * time.Minute,
	}
}

// Load は .env / YAML / 環境変数を読み込み Config を返します。
func Load() (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("BOOKNEST_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(c *Config) error {
	setString(&c.Port, "PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.ProjectID, "GCP_PROJECT_ID", "GOOGLE_CLOUD_PROJECT", "FIRESTORE_PROJECT_ID")
	setString(&c.CredentialsFile, "FIRESTORE_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&c.Remote, "BOOKNEST_REMOTE")
	setString(&c.MongoURI, "MONGODB_URI")
	setString(&c.MongoDatabase, "MONGODB_DATABASE")
	setString(&c.Local, "BOOKNEST_LOCAL")
	setString(&c.LocalDir, "BOOKNEST_LOCAL_DIR")
	setString(&c.SQLitePath, "BOOKNEST_SQLITE_PATH")
	setString(&c.PostgresDSN, "DATABASE_URL")
	setString(&c.FlushMode, "BOOKNEST_FLUSH_MODE")
	setString(&c.GCSBucket, "GCS_BUCKET")
	setString(&c.UploadDir, "BOOKNEST_UPLOAD_DIR")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.AdminEmail, "BOOKNEST_ADMIN_EMAIL")
	setString(&c.AdminName, "BOOKNEST_ADMIN_NAME")
	setString(&c.AdminPassword, "BOOKNEST_ADMIN_PASSWORD")
	setString(&c.SendGridAPIKey, "SENDGRID_API_KEY")
	setString(&c.SendGridFrom, "SENDGRID_FROM")
	setString(&c.StoreName, "BOOKNEST_STORE_NAME")

	if v := getenvTrim("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	collect(setBool(&c.LogDev, "LOG_DEV"))
	collect(setBool(&c.LocalWatch, "BOOKNEST_LOCAL_WATCH"))
	collect(setBool(&c.FirebaseAuth, "FIREBASE_AUTH"))
	collect(setBool(&c.RequireCode, "BOOKNEST_REQUIRE_CODE"))
	collect(setInt(&c.FlushMaxAttempts, "BOOKNEST_FLUSH_MAX_ATTEMPTS"))
	collect(setInt64(&c.QuotaCapacityBytes, "BOOKNEST_QUOTA_BYTES"))
	collect(setDuration(&c.SessionTTL, "SESSION_TTL"))
	collect(setDuration(&c.AdminPollInterval, "ADMIN_POLL_INTERVAL"))
	collect(setDuration(&c.UserPollInterval, "USER_POLL_INTERVAL"))
	collect(setDuration(&c.TicketPollInterval, "TICKET_POLL_INTERVAL"))
	collect(setDuration(&c.ProbeInterval, "PROBE_INTERVAL"))
	collect(setDuration(&c.QuotaInterval, "QUOTA_INTERVAL"))
	collect(setDuration(&c.PenaltySweepEvery, "PENALTY_SWEEP_INTERVAL"))
	return errors.Join(errs...)
}

// Validate fails fast on values that would leave the server half-configured.
func (c *Config) Validate() error {
	switch c.Remote {
	case RemoteNone, RemoteFirestore, RemoteMongo:
	default:
		return fmt.Errorf("config: unknown remote %q", c.Remote)
	}
	switch c.Local {
	case LocalFile, LocalSQLite, LocalPostgres, LocalMemory:
	default:
		return fmt.Errorf("config: unknown local store %q", c.Local)
	}
	if c.Remote == RemoteFirestore && strings.TrimSpace(c.ProjectID) == "" {
		return errors.New("config: firestore remote needs GCP_PROJECT_ID")
	}
	if c.Remote == RemoteMongo && strings.TrimSpace(c.MongoURI) == "" {
		return errors.New("config: mongodb remote needs MONGODB_URI")
	}
	if c.Local == LocalPostgres && strings.TrimSpace(c.PostgresDSN) == "" {
		return errors.New("config: postgres local store needs DATABASE_URL")
	}
	if c.FirebaseAuth && strings.TrimSpace(c.ProjectID) == "" {
		return errors.New("config: firebase auth needs GCP_PROJECT_ID")
	}
	if strings.ContainsAny(c.GCSBucket, " \t\r\n") {
		return fmt.Errorf("config: GCS bucket contains whitespace (got %q)", c.GCSBucket)
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// ----------------------------
// Helpers
// ----------------------------

func getenvTrim(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// setString takes the first non-empty env value among keys.
func setString(dst *string, keys ...string) {
	for _, k := range keys {
		if v := getenvTrim(k); v != "" {
			*dst = v
			return
		}
	}
}

func setBool(dst *bool, key string) error {
	v := getenvTrim(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v := getenvTrim(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v := getenvTrim(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := getenvTrim(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
