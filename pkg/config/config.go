package config

import (
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

type Config struct {
	ServerHost string `koanf:"server_host" default:"0.0.0.0"`
	ServerPort int    `koanf:"server_port" default:"8080"`

	DatabaseFilePath          string        `koanf:"database_file_path" validate:"required"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`

	JWTSecret              string        `koanf:"jwt_secret" validate:"required"`
	TokenExpiry            time.Duration `koanf:"token_expiry" default:"8h"`
	BootstrapAdminUsername string        `koanf:"bootstrap_admin_username"`
	BootstrapAdminPassword string        `koanf:"bootstrap_admin_password"`

	// StoragePrefix is the leading segment of every shelf location, e.g. the
	// "TIC" in "TIC-R-1-S-3".
	StoragePrefix string `koanf:"storage_prefix" default:"TIC"`

	VaultDir            string        `koanf:"vault_dir" default:"./tmp/vault"`
	MaxUploadSizeMB     int           `koanf:"max_upload_size_mb" default:"100"`
	DownloadDedupWindow time.Duration `koanf:"download_dedup_window" default:"5s"`
	RedisURL            string        `koanf:"redis_url"`

	Environment string `koanf:"environment" default:"development"`
}

const (
	configFileENV     = "CONFIG_FILE"
	defaultConfigFile = "/config/nexus.yaml"
)

// New loads the configuration. Values are layered: struct defaults, then the
// YAML file named by CONFIG_FILE (if present), then environment variables
// named after the upper-cased keys (e.g. DATABASE_FILE_PATH).
func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	configFile := os.Getenv(configFileENV)
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "failed to load config file %s", configFile)
		}
	}

	known := knownKeys()
	err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(key)
		if _, ok := known[key]; !ok {
			return "", nil
		}
		return key, value
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config suitable for tests: an in-memory database and a
// fixed JWT secret.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DatabaseFilePath = ":memory:"
	cfg.DatabaseConnectRetryCount = 1
	cfg.DatabaseConnectRetryDelay = 0
	cfg.JWTSecret = "test-secret"
	cfg.Environment = "test"
	return cfg
}

func (cfg *Config) validate() error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.WithStack(err)
	}

	missing := make([]string, 0, len(verrs))
	t := reflect.TypeOf(*cfg)
	for _, fe := range verrs {
		f, ok := t.FieldByName(fe.StructField())
		if !ok {
			continue
		}
		key := f.Tag.Get("koanf")
		missing = append(missing, strings.ToUpper(key)+" ("+key+")")
	}

	return errors.Errorf("missing required config: %s", strings.Join(missing, ", "))
}

// knownKeys returns the set of koanf keys declared on Config so that unrelated
// environment variables are ignored.
func knownKeys() map[string]struct{} {
	keys := map[string]struct{}{}
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		if key := t.Field(i).Tag.Get("koanf"); key != "" {
			keys[key] = struct{}{}
		}
	}
	return keys
}
