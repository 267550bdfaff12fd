package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Lexicon  LexiconConfig  `mapstructure:"lexicon"`
	Game     GameConfig     `mapstructure:"game"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
}

type ServerConfig struct {
	HTTPAddress   string `mapstructure:"http_address"`
	RPCAddress    string `mapstructure:"rpc_address"`
	CommandPrefix string `mapstructure:"command_prefix"`
	// SinglePlayer lets one member chain words alone.
	SinglePlayer bool `mapstructure:"single_player"`
}

type DatabaseConfig struct {
	// Driver is either "postgres" or "memory".
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type LexiconConfig struct {
	// Cache selects the durable word cache: "database", "bolt" or "memory".
	Cache    string `mapstructure:"cache"`
	BoltPath string `mapstructure:"bolt_path"`
	// RedisURL enables a Redis front cache when set.
	RedisURL string `mapstructure:"redis_url"`
	// SourceURL is the lookup endpoint; "{lang}" is replaced by the language code.
	SourceURL      string        `mapstructure:"source_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	CacheNegative  bool          `mapstructure:"cache_negative"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

type GameConfig struct {
	DefaultLanguages          []string `mapstructure:"default_languages"`
	HistoryLength             int      `mapstructure:"history_length"`
	MistakePenalty            float64  `mapstructure:"mistake_penalty"`
	ReliableKarmaThreshold    float64  `mapstructure:"reliable_karma_threshold"`
	ReliableAccuracyThreshold float64  `mapstructure:"reliable_accuracy_threshold"`
	FailedRoleRecovery        int      `mapstructure:"failed_role_recovery"`
	GlobalBlacklist           []string `mapstructure:"global_blacklist"`
}

type MonitorConfig struct {
	Namespace string `mapstructure:"namespace"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.command_prefix", "!")
	v.SetDefault("server.single_player", false)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "wordchain")
	v.SetDefault("database.postgres.password", "wordchain")
	v.SetDefault("database.postgres.dbname", "wordchain")

	v.SetDefault("lexicon.cache", "database")
	v.SetDefault("lexicon.bolt_path", "data/lexicon.db")
	v.SetDefault("lexicon.source_url", "https://{lang}.wiktionary.org/w/api.php")
	v.SetDefault("lexicon.timeout", 5*time.Second)
	v.SetDefault("lexicon.cache_negative", false)
	v.SetDefault("lexicon.max_concurrency", 8)

	v.SetDefault("game.default_languages", []string{"en"})
	v.SetDefault("game.history_length", 5)
	v.SetDefault("game.mistake_penalty", 5.0)
	v.SetDefault("game.reliable_karma_threshold", 50.0)
	v.SetDefault("game.reliable_accuracy_threshold", 0.99)
	v.SetDefault("game.failed_role_recovery", 30)

	v.SetDefault("monitor.namespace", "wordchain")
}

// LoadConfig reads config.yaml from path, overlaid with environment variables
// (DATABASE_POSTGRES_HOST, LEXICON_TIMEOUT, ...). A missing file falls back to defaults.
func LoadConfig(path string) (config *Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	return
}
