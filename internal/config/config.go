package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	BaseURL string `mapstructure:"base_url"` // public origin used in OAuth redirect URIs
}

type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	LogMode bool   `mapstructure:"log_mode"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type OAuthConfig struct {
	BaseURL            string   `mapstructure:"base_url"`
	ClientID           string   `mapstructure:"client_id"`
	ClientSecret       string   `mapstructure:"client_secret"`
	TimeoutSeconds     int      `mapstructure:"timeout_seconds"`
	MentorGroups       []string `mapstructure:"mentor_groups"`
	SeniorMentorGroups []string `mapstructure:"senior_mentor_groups"`
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

type AppSubConfig struct {
	ProfilePicsDir string `mapstructure:"profile_pics_dir"`
	PageSize       int    `mapstructure:"page_size"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Log      LogConfig      `mapstructure:"log"`
	App      AppSubConfig   `mapstructure:"app"`
}

var (
	appConfig *Config
	once      sync.Once
)

// Load loads configuration from given file path (e.g. "config.yaml").
// If path is empty, it defaults to "config.yaml" in current working directory.
func Load(path string) (*Config, error) {
	var err error
	once.Do(func() {
		v := viper.New()

		if path == "" {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath(".")
		} else {
			v.SetConfigFile(path)
		}

		// environment overrides, e.g. MP_SERVER_PORT=9000
		v.SetEnvPrefix("MP")
		v.AutomaticEnv()

		v.SetDefault("oauth.base_url", "https://uclapi.com")
		v.SetDefault("oauth.timeout_seconds", 10)
		// current cohort group names used for role derivation
		v.SetDefault("oauth.mentor_groups", []string{"programmingtutors2425"})
		v.SetDefault("oauth.senior_mentor_groups", []string{"SPT2425"})
		v.SetDefault("jwt.expire_hours", 24)
		v.SetDefault("app.profile_pics_dir", "data/profile-pics")

		if err = v.ReadInConfig(); err != nil {
			err = fmt.Errorf("read config: %w", err)
			return
		}

		var c Config
		if err = v.Unmarshal(&c); err != nil {
			err = fmt.Errorf("unmarshal config: %w", err)
			return
		}

		appConfig = &c
	})

	if err != nil {
		return nil, err
	}
	return appConfig, nil
}

// Get returns the loaded global configuration.
// Call Load() once at application startup.
func Get() *Config {
	return appConfig
}
