package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/consejo/internal/flagx"
	"github.com/dmitrijs2005/consejo/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations use
// timex.Duration, so both "15m" and integer nanoseconds are accepted.
// Pointer fields distinguish "absent" from zero so that a partial file only
// overrides what it mentions.
type JsonConfig struct {
	EndpointAddrHTTP             *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	SecretKey                    *string         `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	RedisAddr                    *string         `json:"redis_addr"`
	LoginMaxAttempts             *int            `json:"login_max_attempts"`
	RecoveryMaxAttempts          *int            `json:"recovery_max_attempts"`
	RateLimitWindow              *timex.Duration `json:"rate_limit_window"`
	BcryptCost                   *int            `json:"bcrypt_cost"`
	DefaultUnitName              *string         `json:"default_unit_name"`
	LogLevel                     *string         `json:"log_level"`
	HealthCheckInterval          *timex.Duration `json:"health_check_interval"`
	TrustProxyHeaders            *bool           `json:"trust_proxy_headers"`
}

// parseJson loads the file named by -c/-config into config. Without the
// flag nothing happens. An unreadable or malformed file panics, since the
// process cannot start with a half-applied configuration.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setString(&config.RedisAddr, c.RedisAddr)
	setInt(&config.LoginMaxAttempts, c.LoginMaxAttempts)
	setInt(&config.RecoveryMaxAttempts, c.RecoveryMaxAttempts)
	setDuration(&config.RateLimitWindow, c.RateLimitWindow)
	setInt(&config.BcryptCost, c.BcryptCost)
	setString(&config.DefaultUnitName, c.DefaultUnitName)
	setString(&config.LogLevel, c.LogLevel)
	setDuration(&config.HealthCheckInterval, c.HealthCheckInterval)
	if c.TrustProxyHeaders != nil {
		config.TrustProxyHeaders = *c.TrustProxyHeaders
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
