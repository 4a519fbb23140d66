package internal

import (
	"fmt"
	"strings"
	"time"
)

const (
	StoreBadger = "badger"
	StoreSQLite = "sqlite"
)

type Config struct {
	Host      string `env:"HOST,default=localhost"`
	HTTPPort  int    `env:"HTTP_PORT,default=8080"`
	GRPCPort  int    `env:"GRPC_PORT,default=9090"`
	DebugPort int    `env:"DEBUG_PORT,default=8081"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`

	StoreDriver    string `env:"STORE_DRIVER,default=badger"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=./data/badger"`
	SQLiteFilepath string `env:"SQLITE_FILEPATH,default=./data/gym-chat.db"`

	JWTSecret string `env:"JWT_SECRET,required=true"`
	JWTIssuer string `env:"JWT_ISSUER,default=gym-app"`
	AdminRole string `env:"ADMIN_ROLE,default=admin"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	MaxFrameBytes        int64         `env:"MAX_FRAME_BYTES,default=65536"`
	PingInterval         time.Duration `env:"PING_INTERVAL,default=54s"`
	PongTimeout          time.Duration `env:"PONG_TIMEOUT,default=60s"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS,default=*"`
	InvokeRate           float64       `env:"INVOKE_RATE,default=20"`
	InvokeBurst          int           `env:"INVOKE_BURST,default=40"`

	HistoryDefaultLimit int           `env:"HISTORY_DEFAULT_LIMIT,default=50"`
	HistoryMaxLimit     int           `env:"HISTORY_MAX_LIMIT,default=200"`
	Retention           time.Duration `env:"RETENTION,default=720h"`
	MaxBodyLength       int           `env:"MAX_BODY_LENGTH,default=2000"`

	DedupWindow        time.Duration `env:"DEDUP_WINDOW,default=5m"`
	DedupSweepInterval time.Duration `env:"DEDUP_SWEEP_INTERVAL,default=1m"`
	MetricInterval     time.Duration `env:"METRIC_INTERVAL,default=15s"`
	RestartInterval    time.Duration `env:"RESTART_INTERVAL,default=1s"`

	ModerationEnabled bool   `env:"MODERATION_ENABLED,default=true"`
	CharReplacement   string `env:"CHARACTER_REPLACEMENT,default=*"`

	AssistantTimeout time.Duration `env:"ASSISTANT_TIMEOUT,default=5s"`
	AssistantDelay   time.Duration `env:"ASSISTANT_DELAY,default=200ms"`
}

// Validate catches the combinations go-env cannot express with tags.
func (c Config) Validate() error {
	switch {
	case c.StoreDriver != StoreBadger && c.StoreDriver != StoreSQLite:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreBadger, StoreSQLite, c.StoreDriver)
	case c.HistoryDefaultLimit <= 0 || c.HistoryMaxLimit < c.HistoryDefaultLimit:
		return fmt.Errorf("HISTORY_DEFAULT_LIMIT must be positive and not above HISTORY_MAX_LIMIT")
	case c.PongTimeout <= c.PingInterval:
		return fmt.Errorf("PONG_TIMEOUT (%s) must be longer than PING_INTERVAL (%s)", c.PongTimeout, c.PingInterval)
	case c.Retention <= 0:
		return fmt.Errorf("RETENTION must be positive")
	}
	_, err := CharacterRune(c.CharReplacement)
	return err
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
