package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"recallwatch/internal/fetch"
	"recallwatch/internal/store"
)

const EnvPrefix = "RECALLWATCH"

const (
	DefaultMake              = "TESLA"
	DefaultStart             = "2024-01-01"
	DefaultEnd               = "2024-12-31"
	DefaultRecallsDataset    = "86zz-ue7u"
	DefaultComplaintsDataset = "htum-kus7"
	DefaultAddr              = ":8080"
	DefaultJWTSecret         = "dev-secret-change-me"
	DefaultJWTIssuer         = "recallwatch"
	DefaultJWTTTL            = 24 * time.Hour
	DefaultOperator          = "operator"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultComplaintsSource  = fetch.ComplaintSourceNHTSA
	dateLayout               = "2006-01-02"
)

type Config struct {
	Make      string
	Start     string
	End       string
	Model     string
	ModelYear string

	Database   DatabaseConfig
	Socrata    SocrataConfig
	NHTSA      NHTSAConfig
	Complaints ComplaintsConfig
	HTTP       HTTPConfig
	Log        LogConfig
	Server     ServerConfig
	Auth       AuthConfig
}

type DatabaseConfig struct {
	URL       string
	ChunkSize int
}

type SocrataConfig struct {
	BaseURL           string
	RecallsDataset    string
	ComplaintsDataset string
	AppToken          string
	PageSize          int
	RateLimit         time.Duration
}

type NHTSAConfig struct {
	BaseURL string
}

type ComplaintsConfig struct {
	Source string // nhtsa | socrata
}

type HTTPConfig struct {
	Timeout   time.Duration
	UserAgent string
}

type LogConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	Addr     string
	GRPCAddr string
}

type AuthConfig struct {
	JWTSecret            string
	JWTIssuer            string
	JWTTTL               time.Duration
	Operator             string
	OperatorPasswordHash string // bcrypt; enables POST /auth/login
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"make":              "make",
	"start":             "start",
	"end":               "end",
	"model":             "model",
	"model-year":        "model_year",
	"database-url":      "database.url",
	"chunk-size":        "database.chunk_size",
	"page-size":         "socrata.page_size",
	"app-token":         "socrata.app_token",
	"complaints-source": "complaints.source",
	"log-level":         "log.level",
	"log-format":        "log.format",
	"addr":              "server.addr",
	"grpc-addr":         "server.grpc_addr",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("make", DefaultMake)
	v.SetDefault("start", DefaultStart)
	v.SetDefault("end", DefaultEnd)
	v.SetDefault("model", "")
	v.SetDefault("model_year", "")

	v.SetDefault("database.url", "")
	v.SetDefault("database.chunk_size", store.DefaultChunkSize)

	v.SetDefault("socrata.base_url", fetch.DefaultSocrataBaseURL)
	v.SetDefault("socrata.recalls_dataset", DefaultRecallsDataset)
	v.SetDefault("socrata.complaints_dataset", DefaultComplaintsDataset)
	v.SetDefault("socrata.app_token", "")
	v.SetDefault("socrata.page_size", fetch.DefaultPageSize)
	v.SetDefault("socrata.rate_limit", fetch.DefaultPageDelay)

	v.SetDefault("nhtsa.base_url", fetch.DefaultNHTSABaseURL)
	v.SetDefault("complaints.source", DefaultComplaintsSource)

	v.SetDefault("http.timeout", fetch.DefaultTimeout)
	v.SetDefault("http.user_agent", fetch.DefaultUserAgent)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("server.addr", DefaultAddr)
	v.SetDefault("server.grpc_addr", "")

	v.SetDefault("auth.jwt_secret", DefaultJWTSecret)
	v.SetDefault("auth.jwt_issuer", DefaultJWTIssuer)
	v.SetDefault("auth.jwt_ttl", DefaultJWTTTL)
	v.SetDefault("auth.operator", DefaultOperator)
	v.SetDefault("auth.operator_password_hash", "")
}

// Load resolves configuration from, in increasing priority: defaults, the
// optional config file, RECALLWATCH_* environment variables and the flags
// in fs that were set. Blank environment values count as unset.
func Load(fs *pflag.FlagSet, configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return Config{}, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", configFile, err)
		}
	}

	cfg := Config{
		Make:      str(v, "make", DefaultMake),
		Start:     str(v, "start", DefaultStart),
		End:       str(v, "end", DefaultEnd),
		Model:     str(v, "model", ""),
		ModelYear: str(v, "model_year", ""),
		Database: DatabaseConfig{
			URL:       str(v, "database.url", ""),
			ChunkSize: v.GetInt("database.chunk_size"),
		},
		Socrata: SocrataConfig{
			BaseURL:           str(v, "socrata.base_url", fetch.DefaultSocrataBaseURL),
			RecallsDataset:    str(v, "socrata.recalls_dataset", DefaultRecallsDataset),
			ComplaintsDataset: str(v, "socrata.complaints_dataset", DefaultComplaintsDataset),
			AppToken:          str(v, "socrata.app_token", ""),
			PageSize:          v.GetInt("socrata.page_size"),
			RateLimit:         v.GetDuration("socrata.rate_limit"),
		},
		NHTSA:      NHTSAConfig{BaseURL: str(v, "nhtsa.base_url", fetch.DefaultNHTSABaseURL)},
		Complaints: ComplaintsConfig{Source: strings.ToLower(str(v, "complaints.source", DefaultComplaintsSource))},
		HTTP: HTTPConfig{
			Timeout:   v.GetDuration("http.timeout"),
			UserAgent: str(v, "http.user_agent", fetch.DefaultUserAgent),
		},
		Log: LogConfig{
			Level:  str(v, "log.level", DefaultLogLevel),
			Format: str(v, "log.format", DefaultLogFormat),
		},
		Server: ServerConfig{
			Addr:     str(v, "server.addr", DefaultAddr),
			GRPCAddr: str(v, "server.grpc_addr", ""),
		},
		Auth: AuthConfig{
			JWTSecret: str(v, "auth.jwt_secret", DefaultJWTSecret),
			JWTIssuer: str(v, "auth.jwt_issuer", DefaultJWTIssuer),
			JWTTTL:    v.GetDuration("auth.jwt_ttl"),

			Operator:             str(v, "auth.operator", DefaultOperator),
			OperatorPasswordHash: str(v, "auth.operator_password_hash", ""),
		},
	}
	return cfg, nil
}

// str reads a string key, treating whitespace-only values as unset.
func str(v *viper.Viper, key, def string) string {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return def
	}
	return s
}

// ValidateWindow checks that non-empty start and end dates are YYYY-MM-DD
// and that end is not before start.
func ValidateWindow(start, end string) error {
	for _, d := range []struct{ name, value string }{{"start", start}, {"end", end}} {
		if d.value == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, d.value); err != nil {
			return fmt.Errorf("%s %q is not YYYY-MM-DD", d.name, d.value)
		}
	}
	if start != "" && end != "" && end < start {
		return fmt.Errorf("end %s is before start %s", end, start)
	}
	return nil
}

// Validate checks the values a run depends on.
func (c Config) Validate() error {
	if err := ValidateWindow(c.Start, c.End); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Socrata.PageSize <= 0 {
		return fmt.Errorf("config: socrata.page_size must be > 0, got %d", c.Socrata.PageSize)
	}
	if c.Database.ChunkSize <= 0 {
		return fmt.Errorf("config: database.chunk_size must be > 0, got %d", c.Database.ChunkSize)
	}
	switch c.Complaints.Source {
	case fetch.ComplaintSourceNHTSA, fetch.ComplaintSourceSocrata:
	default:
		return fmt.Errorf("config: unknown complaints.source %q", c.Complaints.Source)
	}
	return nil
}
