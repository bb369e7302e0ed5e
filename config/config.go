package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"

	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	defaultSessionLifetime  = 5 * time.Hour
	defaultResetLifetime    = time.Hour
	defaultProviderTimeout  = 5 * time.Second
	defaultFacebookGraphURL = "https://graph.facebook.com/v19.0"
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Storage StorageConfig `json:"storage" yaml:"storage"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	// Redis backs the password reset rate limiter. Optional.
	Redis *RedisConfig `json:"redis" yaml:"redis"`

	JWT JWTConfig `json:"jwt" yaml:"jwt"`

	PasswordReset PasswordResetConfig `json:"passwordReset" yaml:"passwordReset"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	PasswordPolicy *PasswordPolicyConfig `json:"passwordPolicy" yaml:"passwordPolicy"`

	GoogleOAuth *GoogleOAuthConfig `json:"googleOAuth" yaml:"googleOAuth"`

	FacebookOAuth *FacebookOAuthConfig `json:"facebookOAuth" yaml:"facebookOAuth"`

	// PubSub configuration for outbound email messages
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`
}

type StorageConfig struct {
	// Driver is "postgres" or "memory"
	Driver string `json:"driver" yaml:"driver"`
	// Migrate runs the embedded goose migrations on startup
	Migrate bool `json:"migrate" yaml:"migrate"`
	// SlowQueryThreshold marks queries logged as slow; zero keeps the default
	SlowQueryThreshold time.Duration `json:"slowQueryThreshold" yaml:"slowQueryThreshold"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// JWTConfig configures session token signing.
type JWTConfig struct {
	SigningKey string        `json:"signingKey" yaml:"signingKey"`
	Issuer     string        `json:"issuer" yaml:"issuer"`
	Audience   string        `json:"audience" yaml:"audience"`
	Lifetime   time.Duration `json:"lifetime" yaml:"lifetime"`
}

// PasswordResetConfig configures reset tokens and the forgot/reset rate limit.
type PasswordResetConfig struct {
	SigningKey string        `json:"signingKey" yaml:"signingKey"`
	Lifetime   time.Duration `json:"lifetime" yaml:"lifetime"`
	// CallbackHosts restricts the hosts a reset link may point to. Empty allows any host.
	CallbackHosts []string  `json:"callbackHosts" yaml:"callbackHosts"`
	RateLimit     RateLimit `json:"rateLimit" yaml:"rateLimit"`
}

type RateLimit struct {
	MaxAttempts int           `json:"maxAttempts" yaml:"maxAttempts"`
	Window      time.Duration `json:"window" yaml:"window"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	BcryptCost  int      `json:"bcryptCost" yaml:"bcryptCost"`
	AdminEmails []string `json:"adminEmails" yaml:"adminEmails"`
}

// PasswordPolicyConfig defines password requirements
type PasswordPolicyConfig struct {
	MinLength              int  `json:"minLength" yaml:"minLength"`
	RequiredUniqueChars    int  `json:"requiredUniqueChars" yaml:"requiredUniqueChars"`
	RequireDigit           bool `json:"requireDigit" yaml:"requireDigit"`
	RequireLowercase       bool `json:"requireLowercase" yaml:"requireLowercase"`
	RequireUppercase       bool `json:"requireUppercase" yaml:"requireUppercase"`
	RequireNonAlphanumeric bool `json:"requireNonAlphanumeric" yaml:"requireNonAlphanumeric"`
}

type GoogleOAuthConfig struct {
	ClientID string        `json:"clientId" yaml:"clientId"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

type FacebookOAuthConfig struct {
	AppID     string        `json:"appId" yaml:"appId"`
	AppSecret string        `json:"appSecret" yaml:"appSecret"`
	GraphURL  string        `json:"graphUrl" yaml:"graphUrl"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// PubSubConfig defines Pub/Sub configuration for email publishing
type PubSubConfig struct {
	// Provider type: "local" for local HTTP or "google" for Google Pub/Sub
	Provider string `json:"provider" yaml:"provider"`

	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for google provider)
	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			searchPaths = append(searchPaths, filepath.Join(pwd, path))
		}
	}

	configFile, found := findConfigFile(searchPaths, currEnv)
	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Env overrides follow the YAML casing: JWT_SIGNINGKEY -> jwt.signingKey
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			return canonicalizeEnvKey(k, existingConfigMap), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func findConfigFile(searchPaths []string, currEnv string) (string, bool) {
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}

	return "", false
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Postgres != nil {
		// POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, ...
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	return cfg, nil
}

// ApplyDefaults fills zero values that have a sensible default.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.HTTP.MaxRequestBodySize) == "" {
		c.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageDriverPostgres
	}
	if c.JWT.Lifetime <= 0 {
		c.JWT.Lifetime = defaultSessionLifetime
	}
	if c.PasswordReset.Lifetime <= 0 {
		c.PasswordReset.Lifetime = defaultResetLifetime
	}
	if c.PasswordReset.RateLimit.MaxAttempts <= 0 {
		c.PasswordReset.RateLimit.MaxAttempts = 5
	}
	if c.PasswordReset.RateLimit.Window <= 0 {
		c.PasswordReset.RateLimit.Window = 15 * time.Minute
	}
	if c.Auth == nil {
		c.Auth = &AuthConfig{}
	}
	if c.PasswordPolicy == nil {
		c.PasswordPolicy = DefaultPasswordPolicy()
	}
	if c.GoogleOAuth != nil && c.GoogleOAuth.Timeout <= 0 {
		c.GoogleOAuth.Timeout = defaultProviderTimeout
	}
	if c.FacebookOAuth != nil {
		if c.FacebookOAuth.Timeout <= 0 {
			c.FacebookOAuth.Timeout = defaultProviderTimeout
		}
		if c.FacebookOAuth.GraphURL == "" {
			c.FacebookOAuth.GraphURL = defaultFacebookGraphURL
		}
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.JWT.SigningKey == "" {
		return errors.New("jwt.signingKey must be provided")
	}
	if c.PasswordReset.SigningKey == "" {
		return errors.New("passwordReset.signingKey must be provided")
	}
	if c.PasswordReset.SigningKey == c.JWT.SigningKey {
		return errors.New("passwordReset.signingKey must differ from jwt.signingKey")
	}

	switch c.Storage.Driver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.Postgres == nil {
			return errors.New("postgres section is required for the postgres storage driver")
		}
	default:
		return errors.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}

	return nil
}

// DefaultPasswordPolicy mirrors the stock ASP.NET Identity password rules.
func DefaultPasswordPolicy() *PasswordPolicyConfig {
	return &PasswordPolicyConfig{
		MinLength:              6,
		RequiredUniqueChars:    1,
		RequireDigit:           true,
		RequireLowercase:       true,
		RequireUppercase:       true,
		RequireNonAlphanumeric: true,
	}
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv reads POSTGRES_REPLICAS_{index}_{HOST,PORT,USERNAME,PASSWORD}.
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			break
		}

		replicas = append(replicas, postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		})
	}

	return replicas
}
