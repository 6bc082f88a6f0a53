package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	MongoURI      string
	MainDBName    string
	ArchiveDBName string
	Port          string
	Environment   string
	LogLevel      string
	LogFormat     string

	// APIKey guards the maintenance endpoints. AllowUnauthenticatedMaintenance
	// only takes effect while APIKey is empty.
	APIKey                          string
	AllowUnauthenticatedMaintenance bool
	JWTSecret                       string

	SendGridAPIKey   string
	EmailFromName    string
	EmailFromAddress string
	EmailBatchSize   int
	EmailMaxRetries  int
	EmailRetryDelay  time.Duration

	BirthdayTimezone   string
	CORSAllowedOrigins []string

	AWSRegion           string
	ArchiveExportBucket string
)

// LoadConfig loads environment variables from .env file
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values or system environment variables")
	}

	MongoURI = getEnv("MONGODB_URI", "mongodb://localhost:27017")
	MainDBName = getEnv("MAIN_DB_NAME", "birthdayclub")
	ArchiveDBName = getEnv("ARCHIVE_DB_NAME", "deleted")
	Port = getEnv("PORT", "8080")
	Environment = getEnv("ENVIRONMENT", "development")
	LogLevel = getEnv("LOG_LEVEL", "info")
	LogFormat = getEnv("LOG_FORMAT", "console")

	APIKey = os.Getenv("API_KEY")
	AllowUnauthenticatedMaintenance = getEnvBool("ALLOW_UNAUTHENTICATED_MAINTENANCE", false)
	JWTSecret = os.Getenv("JWT_SECRET")

	SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")
	EmailFromName = getEnv("EMAIL_FROM_NAME", "Birthday Club")
	EmailFromAddress = getEnv("EMAIL_FROM_ADDRESS", "no-reply@birthdayclub.app")
	EmailBatchSize = getEnvInt("EMAIL_BATCH_SIZE", 10)
	EmailMaxRetries = getEnvInt("EMAIL_MAX_RETRIES", 3)
	EmailRetryDelay = getEnvDuration("EMAIL_RETRY_DELAY", 2*time.Second)

	BirthdayTimezone = getEnv("BIRTHDAY_TIMEZONE", "UTC")
	CORSAllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "*"))

	AWSRegion = getEnv("AWS_REGION", "us-east-1")
	ArchiveExportBucket = os.Getenv("ARCHIVE_EXPORT_BUCKET")
}

// IsProduction reports whether the service runs with production settings.
func IsProduction() bool {
	return Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
