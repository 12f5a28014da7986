package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from the environment, loading a .env file
// first when one exists. Malformed numeric or duration values are ignored
// and leave the previous value in place.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	setString(&config.EndpointAddrHTTP, "ADDRESS")
	setString(&config.DatabaseDSN, "DATABASE_DSN")
	setString(&config.SecretKey, "SECRET_KEY")
	setDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_VALIDITY_DURATION")
	setDuration(&config.RefreshTokenValidityDuration, "REFRESH_TOKEN_VALIDITY_DURATION")
	setInt(&config.EventBufferSize, "EVENT_BUFFER_SIZE")
	setDuration(&config.HeartbeatInterval, "HEARTBEAT_INTERVAL")
	setString(&config.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&config.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&config.GoogleRedirectURL, "GOOGLE_REDIRECT_URL")
	setInt(&config.MaxFailedLogins, "MAX_FAILED_LOGINS")
	setDuration(&config.LockDuration, "LOCK_DURATION")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
