package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
	RefreshTokenDur   time.Duration

	// Realtime layer tuning. Clients are expected to ping every 30s;
	// entries silent for StaleThreshold are swept on a SweepInterval cadence.
	SweepInterval  time.Duration
	StaleThreshold time.Duration
	DedupWindow    time.Duration

	// Notification retention: read notifications older than this are purged
	// (archived to S3 first when a bucket is configured).
	NotificationRetention time.Duration
	ArchiveBucket         string

	SNSTopicARN string // offline push fan-out; empty disables it

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string
	Sessions      string
	Notifications string
	Posts         string
	Comments      string
	Follows       string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "5000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:         getEnv("DYNAMO_TABLE_USERS", "pingme_users"),
			Sessions:      getEnv("DYNAMO_TABLE_SESSIONS", "pingme_sessions"),
			Notifications: getEnv("DYNAMO_TABLE_NOTIFICATIONS", "pingme_notifications"),
			Posts:         getEnv("DYNAMO_TABLE_POSTS", "pingme_posts"),
			Comments:      getEnv("DYNAMO_TABLE_COMMENTS", "pingme_comments"),
			Follows:       getEnv("DYNAMO_TABLE_FOLLOWS", "pingme_follows"),
		},

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,
		RefreshTokenDur:   time.Duration(getEnvInt("REFRESH_TOKEN_EXPIRY_DAYS", 30)) * 24 * time.Hour,

		SweepInterval:  time.Duration(getEnvInt("RT_SWEEP_SECONDS", 60)) * time.Second,
		StaleThreshold: time.Duration(getEnvInt("RT_STALE_SECONDS", 300)) * time.Second,
		DedupWindow:    time.Duration(getEnvInt("NOTIFICATION_DEDUP_SECONDS", 60)) * time.Second,

		NotificationRetention: time.Duration(getEnvInt("NOTIFICATION_RETENTION_DAYS", 30)) * 24 * time.Hour,
		ArchiveBucket:         getEnv("NOTIFICATION_ARCHIVE_BUCKET", ""),

		SNSTopicARN: getEnv("SNS_PUSH_TOPIC_ARN", ""),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@pingme.app"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
