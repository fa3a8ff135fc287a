package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cloudkeeper/internal/flagx"
	"github.com/dmitrijs2005/cloudkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations use
// timex.Duration so both "2h" and integer nanoseconds are accepted. Pointer
// fields distinguish "absent" from an explicit zero or false.
type JsonConfig struct {
	EndpointAddrHTTP            *string         `json:"endpoint_addr_http"`
	DatabaseDSN                 *string         `json:"database_dsn"`
	SecretKey                   *string         `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	StorageRoot                 *string         `json:"storage_root"`
	ReadOnly                    *bool           `json:"read_only"`
	RegistrationEnabled         *bool           `json:"registration_enabled"`
	TLSCertPath                 *string         `json:"tls_cert_path"`
	TLSKeyPath                  *string         `json:"tls_key_path"`
	RateLimitPeriod             *timex.Duration `json:"rate_limit_period"`
	RateLimitBurst              *int            `json:"rate_limit_burst"`
	RedisAddr                   *string         `json:"redis_addr"`
	RedisPassword               *string         `json:"redis_password"`
	MaxSessions                 *int            `json:"max_sessions"`
	Workers                     *int            `json:"workers"`
	MaxUploadSize               *int64          `json:"max_upload_size"`
	LogLevel                    *string         `json:"log_level"`
	VerifyEmailDomain           *bool           `json:"verify_email_domain"`
}

// parseJson overlays values from the file named by -c/-config. Keys missing
// from the file keep their current value. An unreadable file or invalid
// JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
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

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setIf(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	setIf(&config.StorageRoot, c.StorageRoot)
	setIf(&config.ReadOnly, c.ReadOnly)
	setIf(&config.RegistrationEnabled, c.RegistrationEnabled)
	setIf(&config.TLSCertPath, c.TLSCertPath)
	setIf(&config.TLSKeyPath, c.TLSKeyPath)
	if c.RateLimitPeriod != nil {
		config.RateLimitPeriod = c.RateLimitPeriod.Duration
	}
	setIf(&config.RateLimitBurst, c.RateLimitBurst)
	setIf(&config.RedisAddr, c.RedisAddr)
	setIf(&config.RedisPassword, c.RedisPassword)
	setIf(&config.MaxSessions, c.MaxSessions)
	setIf(&config.Workers, c.Workers)
	setIf(&config.MaxUploadSize, c.MaxUploadSize)
	setIf(&config.LogLevel, c.LogLevel)
	setIf(&config.VerifyEmailDomain, c.VerifyEmailDomain)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
