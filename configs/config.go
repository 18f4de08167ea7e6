package configs

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
)

type Config struct {
	Port            string
	MongoURI        string
	DBName          string
	BooksCollection string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	AuditEnabled        bool
	AuditExportInterval time.Duration
	AMQPURL             string
	AMQPQueue           string

	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// LoadConfig reads an optional .env file and then the process environment.
// Unset variables fall back to defaults; malformed ones are an error.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil {
		grip.Debug("no .env file found, using environment variables")
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, which has the signature of os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	p := parser{lookup: lookup}

	cfg := Config{
		Port:            p.str("PORT", "3000"),
		MongoURI:        p.str("MONGO_URI", "mongodb://localhost:27017"),
		DBName:          p.str("DB_NAME", "bookstore"),
		BooksCollection: p.str("BOOKS_COLLECTION", "bookstore"),
		RequestTimeout:  p.duration("REQUEST_TIMEOUT", 5*time.Second),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),

		AuditEnabled:        p.boolean("AUDIT_ENABLED", true),
		AuditExportInterval: p.duration("AUDIT_EXPORT_INTERVAL", 30*time.Second),
		AMQPURL:             p.str("AMQP_URL", ""),
		AMQPQueue:           p.str("AMQP_QUEUE", "bookstore.audit"),

		RedisAddr:         p.str("REDIS_ADDR", ""),
		RedisPassword:     p.str("REDIS_PASSWORD", ""),
		RedisDB:           p.integer("REDIS_DB", 0),
		RateLimitRequests: p.integer("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   p.duration("RATE_LIMIT_WINDOW", time.Minute),
	}
	if p.err != nil {
		return Config{}, p.err
	}

	if cfg.RequestTimeout <= 0 {
		return Config{}, errors.New("REQUEST_TIMEOUT must be positive")
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return Config{}, errors.Errorf("invalid PORT %q", cfg.Port)
	}
	return cfg, nil
}

func (c Config) Addr() string {
	return ":" + c.Port
}

// parser keeps the first error so that LoadConfig can report it once.
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) str(key, def string) string {
	if v, ok := p.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(errors.Errorf("invalid int for %s: %q", key, v))
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(errors.Errorf("invalid duration for %s: %q", key, v))
		return def
	}
	return d
}

func (p *parser) boolean(key string, def bool) bool {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(errors.Errorf("invalid bool for %s: %q", key, v))
		return def
	}
	return b
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}
