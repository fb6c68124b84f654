package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server struct {
		Port int
	}
	DB struct {
		Driver         string
		SQLitePath     string
		Host           string
		Port           int
		User           string
		Password       string
		DBName         string
		SSLMode        string
		MigrationsPath string
		LogSQL         bool
	}
	JWT struct {
		SecretKey string
	}
	SMTP struct {
		Enabled  bool
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	Log struct {
		Dir   string
		Level string
	}
	RateLimit struct {
		Requests int
		Window   time.Duration
	}
	Ledger struct {
		DefaultCurrency      string
		DefaultReportMonths  int
		NotificationPageSize int
	}
}

// defaults значения по умолчанию, ключи совпадают с именами переменных окружения
var defaults = map[string]interface{}{
	"SERVER_PORT":                   8080,
	"DB_DRIVER":                     "postgres",
	"DB_SQLITE_PATH":                "piggybank.db",
	"DB_HOST":                       "localhost",
	"DB_PORT":                       5432,
	"DB_USER":                       "postgres",
	"DB_PASSWORD":                   "postgres",
	"DB_NAME":                       "piggybank",
	"DB_SSLMODE":                    "disable",
	"DB_MIGRATIONS_PATH":            "file://migrations",
	"DB_LOG_SQL":                    false,
	"JWT_SECRET_KEY":                "your-secret-key-here",
	"SMTP_ENABLED":                  false,
	"SMTP_HOST":                     "smtp.gmail.com",
	"SMTP_PORT":                     587,
	"SMTP_USERNAME":                 "",
	"SMTP_PASSWORD":                 "",
	"SMTP_FROM":                     "noreply@piggybank.local",
	"LOG_DIR":                       "",
	"LOG_LEVEL":                     "info",
	"RATE_LIMIT_REQUESTS":           100,
	"RATE_LIMIT_WINDOW":             "1m",
	"LEDGER_DEFAULT_CURRENCY":       "EUR",
	"LEDGER_REPORT_MONTHS":          3,
	"LEDGER_NOTIFICATION_PAGE_SIZE": 10,
}

// NewConfig создает новый экземпляр конфигурации.
// Сначала подхватывается .env (если есть), затем переменные окружения
// и, опционально, файл из CONFIG_FILE.
func NewConfig() (*Config, error) {
	if err := Load(getEnv("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации %s: %v", file, err)
		}
	}

	return fromViper(v)
}

// Load загружает переменные из .env файла. Отсутствие файла не является ошибкой.
func Load(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("ошибка загрузки %s: %v", path, err)
	}
	return nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	var err error

	// Настройки сервера
	if cfg.Server.Port, err = intValue(v, "SERVER_PORT"); err != nil {
		return nil, fmt.Errorf("неверный формат порта сервера: %v", err)
	}

	// Настройки базы данных
	cfg.DB.Driver = strings.ToLower(v.GetString("DB_DRIVER"))
	if cfg.DB.Driver != "postgres" && cfg.DB.Driver != "sqlite" {
		return nil, fmt.Errorf("неподдерживаемый драйвер базы данных: %s", cfg.DB.Driver)
	}
	cfg.DB.SQLitePath = v.GetString("DB_SQLITE_PATH")
	cfg.DB.Host = v.GetString("DB_HOST")
	if cfg.DB.Port, err = intValue(v, "DB_PORT"); err != nil {
		return nil, fmt.Errorf("неверный формат порта базы данных: %v", err)
	}
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.DBName = v.GetString("DB_NAME")
	cfg.DB.SSLMode = v.GetString("DB_SSLMODE")
	cfg.DB.MigrationsPath = v.GetString("DB_MIGRATIONS_PATH")
	cfg.DB.LogSQL = v.GetBool("DB_LOG_SQL")

	cfg.JWT.SecretKey = v.GetString("JWT_SECRET_KEY")

	// Настройки SMTP
	cfg.SMTP.Enabled = v.GetBool("SMTP_ENABLED")
	cfg.SMTP.Host = v.GetString("SMTP_HOST")
	if cfg.SMTP.Port, err = intValue(v, "SMTP_PORT"); err != nil {
		return nil, fmt.Errorf("неверный формат порта SMTP: %v", err)
	}
	cfg.SMTP.Username = v.GetString("SMTP_USERNAME")
	cfg.SMTP.Password = v.GetString("SMTP_PASSWORD")
	cfg.SMTP.From = v.GetString("SMTP_FROM")

	cfg.Log.Dir = v.GetString("LOG_DIR")
	cfg.Log.Level = strings.ToLower(v.GetString("LOG_LEVEL"))

	if cfg.RateLimit.Requests, err = intValue(v, "RATE_LIMIT_REQUESTS"); err != nil {
		return nil, fmt.Errorf("неверный формат лимита запросов: %v", err)
	}
	if cfg.RateLimit.Window, err = time.ParseDuration(v.GetString("RATE_LIMIT_WINDOW")); err != nil {
		return nil, fmt.Errorf("неверный формат окна лимита запросов: %v", err)
	}

	// Настройки леджера
	cfg.Ledger.DefaultCurrency = strings.ToUpper(v.GetString("LEDGER_DEFAULT_CURRENCY"))
	if cfg.Ledger.DefaultReportMonths, err = intValue(v, "LEDGER_REPORT_MONTHS"); err != nil {
		return nil, fmt.Errorf("неверный формат периода отчета: %v", err)
	}
	if cfg.Ledger.NotificationPageSize, err = intValue(v, "LEDGER_NOTIFICATION_PAGE_SIZE"); err != nil {
		return nil, fmt.Errorf("неверный формат размера страницы уведомлений: %v", err)
	}

	return cfg, nil
}

// PostgresDSN строка подключения для GORM
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.DBName,
		c.DB.SSLMode,
	)
}

// MigrateURL строка подключения для golang-migrate
func (c *Config) MigrateURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User,
		c.DB.Password,
		c.DB.Host,
		c.DB.Port,
		c.DB.DBName,
		c.DB.SSLMode,
	)
}

// intValue разбирает целое число: viper.GetInt молча возвращает 0 на мусоре
func intValue(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s=%q", key, raw)
	}
	return n, nil
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
