package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Leganyst/care-gateway/internal/calendar"
)

// DBConfig — подключение к БД и настройки пула.
type DBConfig struct {
	Driver          string `envconfig:"DB_DRIVER" default:"postgres"` // postgres | sqlite
	Host            string `envconfig:"DB_HOST" default:"postgres"`
	Port            int    `envconfig:"DB_PORT" default:"5432"`
	User            string `envconfig:"DB_USER" default:"gateway"`
	Password        string `envconfig:"DB_PASSWORD" default:"gateway"`
	Name            string `envconfig:"DB_NAME" default:"gateway_db"`
	SSLMode         string `envconfig:"DB_SSLMODE" default:"disable"`
	TimeZone        string `envconfig:"DB_TIMEZONE" default:"UTC"`
	SQLitePath      string `envconfig:"DB_SQLITE_PATH" default:"gateway.db"`
	MaxOpenConns    int    `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int    `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifeTime int    `envconfig:"DB_CONN_MAX_LIFETIME_MIN" default:"30"` // минут
}

// App — конфигурация всего шлюза.
type App struct {
	Env string `envconfig:"ENV" default:"dev"`

	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr string `envconfig:"GRPC_ADDR" default:":50051"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"` // json | console

	// Пустой AMQP_URL — события не публикуются, консьюмер не запускается.
	AMQPURL         string `envconfig:"AMQP_URL"`
	AMQPExchange    string `envconfig:"AMQP_EXCHANGE" default:"care.events"`
	AMQPStatusQueue string `envconfig:"AMQP_STATUS_QUEUE" default:"care.order-status"`

	OTelEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTelEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"otel-collector:4317"`

	// Расписание по умолчанию для провайдеров без собственного.
	DefaultHoursOpen  string `envconfig:"DEFAULT_HOURS_OPEN" default:"09:00"`
	DefaultHoursClose string `envconfig:"DEFAULT_HOURS_CLOSE" default:"17:00"`
	DefaultHoursDays  string `envconfig:"DEFAULT_HOURS_DAYS" default:"mon,tue,wed,thu,fri"`

	// Сколько раз повторять read-modify-write при конфликте версий.
	ConflictRetries int `envconfig:"CONFLICT_RETRIES" default:"3"`

	// Размер LRU-кэша календарей провайдеров; 0 — без кэша.
	CalendarCacheSize int `envconfig:"CALENDAR_CACHE_SIZE" default:"512"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	DB DBConfig
}

// Load читает .env (если есть) и переменные окружения.
func Load() (App, error) {
	_ = godotenv.Load(".env")

	var c App
	if err := envconfig.Process("", &c); err != nil {
		return App{}, fmt.Errorf("process env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return App{}, err
	}
	return c, nil
}

// Validate — минимальная валидация.
func (c App) Validate() error {
	switch c.DB.Driver {
	case "postgres":
		if c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "" {
			return fmt.Errorf("invalid DB config: host/user/name must not be empty")
		}
	case "sqlite":
		if c.DB.SQLitePath == "" {
			return fmt.Errorf("invalid DB config: DB_SQLITE_PATH must not be empty")
		}
	default:
		return fmt.Errorf("invalid DB config: unknown driver %q", c.DB.Driver)
	}
	if c.ConflictRetries < 1 {
		return fmt.Errorf("CONFLICT_RETRIES must be at least 1, got %d", c.ConflictRetries)
	}
	if _, err := c.DefaultWorkingHours(); err != nil {
		return fmt.Errorf("default working hours: %w", err)
	}
	return nil
}

// DefaultWorkingHours собирает расписание по умолчанию из DEFAULT_HOURS_*.
func (c App) DefaultWorkingHours() (calendar.WorkingHours, error) {
	opensAt, err := calendar.ParseTimeOfDay(c.DefaultHoursOpen)
	if err != nil {
		return calendar.WorkingHours{}, err
	}
	closesAt, err := calendar.ParseTimeOfDay(c.DefaultHoursClose)
	if err != nil {
		return calendar.WorkingHours{}, err
	}
	if _, err := calendar.NewTimeRange(opensAt, closesAt); err != nil {
		return calendar.WorkingHours{}, err
	}

	var days []time.Weekday
	for _, name := range strings.Split(c.DefaultHoursDays, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		d, err := calendar.ParseWeekday(name)
		if err != nil {
			return calendar.WorkingHours{}, err
		}
		days = append(days, d)
	}
	return calendar.DefaultWorkingHours(opensAt, closesAt, days...), nil
}
