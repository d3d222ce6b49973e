package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config with values from environment variables. A local
// .env file, if present, is loaded first; real environment variables are
// not overwritten by it.
//
// Recognized variables:
//
//	FIELDSAFE_ADDR             HTTP bind address
//	FIELDSAFE_DATABASE_DSN     PostgreSQL DSN
//	FIELDSAFE_SECRET_KEY       JWT HMAC secret
//	FIELDSAFE_TOKEN_VALIDITY   access token lifetime ("12h", "30m")
//	FIELDSAFE_S3_ROOT_USER     S3 credentials
//	FIELDSAFE_S3_ROOT_PASSWORD
//	FIELDSAFE_S3_BUCKET
//	FIELDSAFE_S3_REGION
//	FIELDSAFE_S3_BASE_ENDPOINT
//	FIELDSAFE_LOG_FILE         rotated log file path
//
// Invalid duration values panic, matching the JSON and flag loaders.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("FIELDSAFE_ADDR"); v != "" {
		config.EndpointAddr = v
	}
	if v := os.Getenv("FIELDSAFE_DATABASE_DSN"); v != "" {
		config.DatabaseDSN = v
	}
	if v := os.Getenv("FIELDSAFE_SECRET_KEY"); v != "" {
		config.SecretKey = v
	}
	if v := os.Getenv("FIELDSAFE_TOKEN_VALIDITY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		config.TokenValidityDuration = d
	}
	if v := os.Getenv("FIELDSAFE_S3_ROOT_USER"); v != "" {
		config.S3RootUser = v
	}
	if v := os.Getenv("FIELDSAFE_S3_ROOT_PASSWORD"); v != "" {
		config.S3RootPassword = v
	}
	if v := os.Getenv("FIELDSAFE_S3_BUCKET"); v != "" {
		config.S3Bucket = v
	}
	if v := os.Getenv("FIELDSAFE_S3_REGION"); v != "" {
		config.S3Region = v
	}
	if v := os.Getenv("FIELDSAFE_S3_BASE_ENDPOINT"); v != "" {
		config.S3BaseEndpoint = v
	}
	if v := os.Getenv("FIELDSAFE_LOG_FILE"); v != "" {
		config.LogFile = v
	}
}
