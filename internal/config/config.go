package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/openoj/judgehub/internal/logger"
	"github.com/openoj/judgehub/internal/validator"
)

type KeyPermissions struct {
	Student bool `mapstructure:"student" json:"student"`
	Grader  bool `mapstructure:"grader"  json:"grader"`
	Worker  bool `mapstructure:"worker"  json:"worker"`
	Admin   bool `mapstructure:"admin"   json:"admin"`
}

// Key is an API key defined in config; the config file is the authoritative
// list and keys dropped from it get deactivated at startup.
type Key struct {
	Active      *bool          `mapstructure:"active"      json:"active"      validate:"required"`
	ID          string         `mapstructure:"id"          json:"id"          validate:"required,uuid_rfc4122"`
	Note        string         `mapstructure:"note"        json:"note"        validate:"required"`
	Token       string         `mapstructure:"token"       json:"token"       validate:"required"`
	Permissions KeyPermissions `mapstructure:"permissions" json:"permissions"`
}

// Worker is a registered execution worker. The shared token authenticates our
// requests to the worker; result callbacks present the per-dispatch token
// minted by the token broker instead.
type Worker struct {
	Name  string `mapstructure:"name"  json:"name"  validate:"required"`
	URL   string `mapstructure:"url"   json:"url"   validate:"required,url"`
	Token string `mapstructure:"token" json:"token" validate:"required"`
}

type PostgresConfig struct {
	User               string        `validate:"required"`
	Password           string        `validate:"required"`
	Host               string        `validate:"required"`
	Database           string        `validate:"required"`
	MaxIdleConnections int           `validate:"required" mapstructure:"max_idle_connections"`
	MaxOpenConnections int           `validate:"required" mapstructure:"max_open_connections"`
	ConnectionTTL      time.Duration `validate:"required" mapstructure:"connection_ttl"`
	Port               int16         `validate:"required"`
}

type RedisConfig struct {
	Host string `mapstructure:"host" validate:"required"`
	Port int16  `mapstructure:"port" validate:"required"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"          validate:"required"`
	AccessKeyID     string `mapstructure:"access_key_id"     validate:"required"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required"`
	BucketName      string `mapstructure:"bucket_name"       validate:"required"`
	SSLEnabled      bool   `mapstructure:"ssl_enabled"`
}

// ObjectStoreConfig holds the current artifact store plus an optional legacy
// store that the consistency migration drains.
type ObjectStoreConfig struct {
	Current *S3Config `mapstructure:"current" validate:"required"`
	Legacy  *S3Config `mapstructure:"legacy"`
}

type RateLimitConfig struct {
	// Minimum seconds between one user's code uploads. Zero disables the guard.
	SubmitIntervalSecs int64 `mapstructure:"submit_interval_secs"`
	FailOpen           bool  `mapstructure:"fail_open"`
}

type SlogConfig struct {
	Level int `mapstructure:"level"`
}

type GormLogConfig struct {
	Level        int  `mapstructure:"level"`
	TraceQueries bool `mapstructure:"trace_queries"`
}

type LoggingConfig struct {
	Gorm    GormLogConfig `mapstructure:"gorm"`
	App     SlogConfig    `mapstructure:"app"`
	UseOTLP bool          `mapstructure:"use_otlp"`
}

// See judgehub.yaml for an example config
type Config struct {
	Postgres             *PostgresConfig    `mapstructure:"postgres"     validate:"required"`
	Redis                *RedisConfig       `mapstructure:"redis"        validate:"required"`
	ObjectStore          *ObjectStoreConfig `mapstructure:"object_store" validate:"required"`
	Logging              *LoggingConfig     `mapstructure:"logging"`
	RateLimit            *RateLimitConfig   `mapstructure:"ratelimit"`
	ListenAddress        string             `mapstructure:"listen_address" validate:"required"`
	Workers              []Worker           `mapstructure:"workers"        validate:"required"`
	Keys                 []Key              `mapstructure:"keys"           validate:"required"`
	WorkerProbeTimeout   time.Duration      `mapstructure:"worker_probe_timeout"`
	TrialTTL             time.Duration      `mapstructure:"trial_ttl"`
	DailySubmitQuota     int                `mapstructure:"daily_submit_quota"`
	GracefulShutdownSecs int64              `mapstructure:"graceful_shutdown_secs"`
}

const (
	AppLogLevel                string = "logging.app.level"
	DailySubmitQuota           string = "daily_submit_quota"
	EnvPrefix                  string = "judgehub"
	GormLogLevel               string = "logging.gorm.level"
	GormTraceQueries           string = "logging.gorm.trace_queries"
	GracefulShutdownSecs       string = "graceful_shutdown_secs"
	ListenAddress              string = "listen_address"
	PostgresDatabase           string = "postgres.database"
	PostgresHost               string = "postgres.host"
	PostgresPassword           string = "postgres.password"
	PostgresPort               string = "postgres.port"
	PostgresUser               string = "postgres.user"
	PostgresMaxIdleConnections string = "postgres.max_idle_connections"
	PostgresMaxOpenConnections string = "postgres.max_open_connections"
	PostgresConnectonTTL       string = "postgres.connection_ttl"
	RateLimitFailOpen          string = "ratelimit.fail_open"
	RedisHost                  string = "redis.host"
	RedisPort                  string = "redis.port"
	S3AccessKeyID              string = "object_store.current.access_key_id"
	S3SecretAccessKey          string = "object_store.current.secret_access_key" // #nosec
	S3LegacyAccessKeyID        string = "object_store.legacy.access_key_id"
	S3LegacySecretAccessKey    string = "object_store.legacy.secret_access_key" // #nosec
	SubmitIntervalSecs         string = "ratelimit.submit_interval_secs"
	TrialTTL                   string = "trial_ttl"
	UseOTLP                    string = "logging.use_otlp"
	WorkerProbeTimeout         string = "worker_probe_timeout"
)

var configReady = false
var config Config

func GetConfig() (*Config, error) {
	if configReady {
		logger.Logger.Debug("returning already-loaded config")
		return &config, nil
	}
	logger.Logger.Info("loading config")

	v := viper.New()

	v.SetConfigName("judgehub")

	v.AddConfigPath("/etc/judgehub/")
	v.AddConfigPath(".")

	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.AutomaticEnv()

	// workaround for https://github.com/spf13/viper/issues/761
	// bind env vars explicitly so they unmarshal into the nested struct
	for _, key := range []string{
		PostgresPassword,
		S3AccessKeyID,
		S3SecretAccessKey,
		S3LegacyAccessKeyID,
		S3LegacySecretAccessKey,
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	v.SetDefault(ListenAddress, "[::]:1323")
	v.SetDefault(PostgresHost, "localhost")
	v.SetDefault(PostgresPort, 5432)
	v.SetDefault(PostgresMaxIdleConnections, 2)
	v.SetDefault(PostgresMaxOpenConnections, 10)
	v.SetDefault(PostgresConnectonTTL, 10*time.Minute)
	v.SetDefault(RedisHost, "localhost")
	v.SetDefault(RedisPort, 6379)
	v.SetDefault(GormLogLevel, int(slog.LevelDebug))
	v.SetDefault(GormTraceQueries, false)
	v.SetDefault(AppLogLevel, int(slog.LevelDebug))
	v.SetDefault(UseOTLP, false)

	v.SetDefault(SubmitIntervalSecs, 0)
	v.SetDefault(RateLimitFailOpen, true)

	v.SetDefault(WorkerProbeTimeout, time.Second)
	v.SetDefault(TrialTTL, 2*time.Hour)
	v.SetDefault(DailySubmitQuota, 100)
	v.SetDefault(GracefulShutdownSecs, 30)

	err := v.ReadInConfig()
	if err != nil {
		// ignore config file not found to allow pure env config
		if _, ok := err.(*viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	if err != nil {
		configReady = false
		return nil, err
	}

	valid := validator.Create()
	err = valid.Validate(&config)
	if err != nil {
		configReady = false
		return nil, err
	}

	configReady = true
	return &config, nil
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s",
		url.QueryEscape(c.Postgres.User),
		url.QueryEscape(c.Postgres.Password),
		c.Postgres.Host, c.Postgres.Port,
		url.QueryEscape(c.Postgres.Database),
	)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
