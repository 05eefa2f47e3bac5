package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"

	"github.com/Astemirdum/lending-service/pkg/kafka"
	"github.com/Astemirdum/lending-service/pkg/logger"
	"github.com/Astemirdum/lending-service/pkg/postgres"
	"github.com/Astemirdum/lending-service/pkg/tracing"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"LENDING_HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"LENDING_HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration
}

// Lending holds the engine tunables.
type Lending struct {
	BorrowLimit       int           `envconfig:"LENDING_BORROW_LIMIT" default:"3"`
	LoanPeriod        time.Duration `envconfig:"LENDING_LOAN_PERIOD" default:"336h"`
	StrictBorrowLimit bool          `envconfig:"LENDING_STRICT_BORROW_LIMIT" default:"false"`
	// zero keeps the database default
	LockTimeout time.Duration `envconfig:"LENDING_LOCK_TIMEOUT" default:"0s"`
	// consume catalog copy adjustments
	ConsumeCatalog bool `envconfig:"LENDING_CONSUME_CATALOG" default:"true"`
	// publish lending events
	PublishEvents bool `envconfig:"LENDING_PUBLISH_EVENTS" default:"true"`
}

type Config struct {
	Server   HTTPServer  `yaml:"server"`
	Database postgres.DB `yaml:"db"`
	Kafka    kafka.Config
	Lending  Lending
	Tracing  tracing.Config `yaml:"tracing"`
	Log      logger.Log     `yaml:"log"`
}

type Option func(cfg *Config)

func WithLogLevel(level zapcore.Level) Option {
	return func(cfg *Config) {
		cfg.Log.LogLevel = level
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		cfg.Server.WriteTimeout = d
	}
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = &config
		printConfig(cfg)
	})

	return cfg
}

func printConfig(cfg *Config) {
	safe := *cfg
	safe.Database.Password = "***"
	jscfg, _ := json.MarshalIndent(safe, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
