package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dkurganov/taskflow/internal/flagx"
	"github.com/dkurganov/taskflow/internal/timex"
)

// JsonConfig is the DTO used for reading a JSON configuration file. Interval
// fields use timex.Duration so both string values such as "15m" and integer
// nanoseconds parse. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	EventBufferSize              int            `json:"event_buffer_size"`
	HeartbeatInterval            timex.Duration `json:"heartbeat_interval"`
	GoogleClientID               string         `json:"google_client_id"`
	GoogleClientSecret           string         `json:"google_client_secret"`
	GoogleRedirectURL            string         `json:"google_redirect_url"`
	MaxFailedLogins              int            `json:"max_failed_logins"`
	LockDuration                 timex.Duration `json:"lock_duration"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. When no flag is set, nothing is
// loaded. An unreadable or invalid file panics: a broken explicit config is
// a startup error, not something to limp past.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	config.RefreshTokenValidityDuration = time.Duration(c.RefreshTokenValidityDuration.Duration)
	config.EventBufferSize = c.EventBufferSize
	config.HeartbeatInterval = time.Duration(c.HeartbeatInterval.Duration)
	config.GoogleClientID = c.GoogleClientID
	config.GoogleClientSecret = c.GoogleClientSecret
	config.GoogleRedirectURL = c.GoogleRedirectURL
	config.MaxFailedLogins = c.MaxFailedLogins
	config.LockDuration = time.Duration(c.LockDuration.Duration)
}
