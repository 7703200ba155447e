package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the full environment-driven configuration. Credentials carry
// `validate:"required"` tags; a missing one is a fatal startup error.
type Config struct {
	ServiceName string
	Env         string

	BotToken        string `validate:"required"`
	AdminTelegramID int64
	AdminChatID     int64 `validate:"required"`

	ProductName       string
	ProductPrice      int64 // kopecks
	CertKidName       string
	CertKidPrice      int64
	CertSpecialName   string
	CertSpecialPrice  int64
	LowStockLevel     int
	CriticalStock     int
	InitialStock      int
	AddressKeywords   []string
	YookassaShopID    string `validate:"required"`
	YookassaSecretKey string `validate:"required"`
	ReturnURL         string
	WebhookSecret     string

	HTTPAddr    string
	PostgresDSN string
	PendingFile string

	ExternalTimeout time.Duration
}

// Russian locality keywords for the destination-country address gate.
// Overridable via ADDRESS_KEYWORDS (comma-separated).
var defaultAddressKeywords = []string{
	"россия", "москва", "московская", "санкт-петербург", "спб", "область",
	"обл", "край", "республика", "город", "г.", "ул.", "улица", "проспект",
	"пр-т", "переулок", "пер.", "дер.", "деревня", "посёлок", "поселок",
	"пос.", "село", "индекс",
}

// Load reads .env when present, parses the environment and validates the
// result. The returned error names the first missing credential.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName:       getenv("SERVICE_NAME", "ekoamulet-bot"),
		Env:               getenv("ENV", "dev"),
		BotToken:          os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminTelegramID:   getenvInt64("ADMIN_TELEGRAM_ID", 0),
		AdminChatID:       getenvInt64("ADMIN_CHAT_ID", 0),
		ProductName:       getenv("PRODUCT_NAME", "ЭКОамулет"),
		ProductPrice:      getenvInt64("PRODUCT_PRICE", 1000) * 100,
		CertKidName:       getenv("CERT_KID_NAME", "Сертификат «Детям»"),
		CertKidPrice:      getenvInt64("CERT_KID_PRICE", 1000) * 100,
		CertSpecialName:   getenv("CERT_SPECIAL_NAME", "Сертификат «Особым мастерам»"),
		CertSpecialPrice:  getenvInt64("CERT_SPECIAL_PRICE", 1000) * 100,
		LowStockLevel:     getenvInt("LOW_STOCK_THRESHOLD", 5),
		CriticalStock:     getenvInt("CRITICAL_STOCK_THRESHOLD", 3),
		InitialStock:      getenvInt("INITIAL_STOCK", 10),
		AddressKeywords:   splitCSV(getenv("ADDRESS_KEYWORDS", "")),
		YookassaShopID:    os.Getenv("YOOKASSA_SHOP_ID"),
		YookassaSecretKey: os.Getenv("YOOKASSA_API_KEY"),
		ReturnURL:         getenv("WEBHOOK_URL", "https://t.me"),
		WebhookSecret:     os.Getenv("WEBHOOK_SECRET"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		PendingFile:       getenv("PENDING_FILE", "pending_orders.json"),
		ExternalTimeout:   getenvDuration("EXTERNAL_TIMEOUT", 30*time.Second),
	}
	if len(cfg.AddressKeywords) == 0 {
		cfg.AddressKeywords = defaultAddressKeywords
	}

	if err := validatorv10.New().Struct(cfg); err != nil {
		var verrs validatorv10.ValidationErrors
		if ok := isValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			return nil, fmt.Errorf("config: %s is not set", envNameFor(verrs[0].StructField()))
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func isValidationErrors(err error, target *validatorv10.ValidationErrors) bool {
	verrs, ok := err.(validatorv10.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

func envNameFor(field string) string {
	switch field {
	case "BotToken":
		return "TELEGRAM_BOT_TOKEN"
	case "AdminChatID":
		return "ADMIN_CHAT_ID"
	case "YookassaShopID":
		return "YOOKASSA_SHOP_ID"
	case "YookassaSecretKey":
		return "YOOKASSA_API_KEY"
	default:
		return field
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, strings.ToLower(t))
		}
	}
	return out
}
