package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"guildchat-backend/internal/models"
)

const envPrefix = "CHATAPP"

var defaults = map[string]any{
	"Address":                  "localhost",
	"Port":                     "3000",
	"TlsCert":                  "",
	"TlsKey":                   "",
	"Cors":                     false,
	"AllowedOrigins":           []string{},
	"PrintHttpRequests":        false,
	"LogToFile":                false,
	"LogLevel":                 "info",
	"Environment":              "production",
	"AccessTokenSecret":        "",
	"RefreshTokenSecret":       "",
	"AccessTokenLifetime":      24 * time.Hour,
	"RefreshTokenLifetime":     30 * 24 * time.Hour,
	"SnowflakeWorkerID":        0,
	"SelfContained":            true,
	"SqlitePath":               "./database.db",
	"DbUser":                   "",
	"DbPassword":               "",
	"DbAddress":                "localhost",
	"DbPort":                   "3306",
	"DbDatabase":               "",
	"RedisAddress":             "localhost:6379",
	"RedisPassword":            "",
	"RedisDB":                  0,
	"EnforceMessageMembership": true,
	"UploadDir":                "./public",
	"MaxAvatarBytes":           5 << 20,
}

// Read loads the config file at path, missing file is fine as long as the environment
// provides the secrets. Every key can be overridden with CHATAPP_<KEY>.
func Read(path string) (*models.ConfigFile, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		err := v.ReadInConfig()
		if err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg models.ConfigFile
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := check(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func check(cfg *models.ConfigFile) error {
	if cfg.AccessTokenSecret == "" {
		return fmt.Errorf("AccessTokenSecret is required")
	}
	if cfg.RefreshTokenSecret == "" {
		return fmt.Errorf("RefreshTokenSecret is required")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return fmt.Errorf("AccessTokenSecret and RefreshTokenSecret must differ")
	}
	if cfg.AccessTokenLifetime <= 0 || cfg.RefreshTokenLifetime <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if !cfg.SelfContained && cfg.DbDatabase == "" {
		return fmt.Errorf("DbDatabase is required when SelfContained is false")
	}
	for _, provider := range cfg.OIDC {
		if provider.Name == "" || provider.ProviderURL == "" {
			return fmt.Errorf("every OIDC provider needs a Name and a ProviderURL")
		}
	}
	return nil
}
