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
	S3BucketName   string
	SNSTopicARN    string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	// Engine knobs. VerifyWindow is the rolling period a completed challenge
	// grants; IssuanceTTL bounds how long an unanswered challenge stays valid;
	// DeleteDelay is how long after a delivery the removal notice fires.
	VerifyWindow        time.Duration
	IssuanceTTL         time.Duration
	DeleteDelay         time.Duration
	ExternalCallTimeout time.Duration

	ShortenerAPIURL string
	ShortenerAPIKey string
	CallbackBaseURL string

	ArtifactURLTTL  time.Duration
	SearchThreshold float64
	MaxSearchResults int

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	UserAccess    string
	Verifications string
	DeliveryJobs  string
	CatalogItems  string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			UserAccess:    getEnv("DYNAMO_TABLE_USER_ACCESS", "user_access"),
			Verifications: getEnv("DYNAMO_TABLE_VERIFICATIONS", "verifications"),
			DeliveryJobs:  getEnv("DYNAMO_TABLE_DELIVERY_JOBS", "delivery_jobs"),
			CatalogItems:  getEnv("DYNAMO_TABLE_CATALOG_ITEMS", "catalog_items"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "filegate-artifacts"),
		SNSTopicARN:  getEnv("SNS_DELETE_TOPIC_ARN", ""),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,

		VerifyWindow:        time.Duration(getEnvInt("VERIFY_WINDOW_HOURS", 24)) * time.Hour,
		IssuanceTTL:         time.Duration(getEnvInt("ISSUANCE_TTL_MINUTES", 30)) * time.Minute,
		DeleteDelay:         time.Duration(getEnvInt("AUTO_DELETE_MINUTES", 10)) * time.Minute,
		ExternalCallTimeout: time.Duration(getEnvInt("EXTERNAL_CALL_TIMEOUT_SECONDS", 10)) * time.Second,

		ShortenerAPIURL: getEnv("SHORTENER_API_URL", "https://inshorturl.com/api"),
		ShortenerAPIKey: getEnv("SHORTENER_API_KEY", ""),
		CallbackBaseURL: getEnv("CALLBACK_BASE_URL", "http://localhost:3000"),

		ArtifactURLTTL:   time.Duration(getEnvInt("ARTIFACT_URL_TTL_MINUTES", 10)) * time.Minute,
		SearchThreshold:  float64(getEnvInt("SEARCH_THRESHOLD_PERCENT", 60)) / 100,
		MaxSearchResults: getEnvInt("MAX_SEARCH_RESULTS", 10),

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
