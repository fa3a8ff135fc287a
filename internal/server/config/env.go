package config

import (
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. CLOUDKEEPER_SECRET_KEY.
const EnvPrefix = "CLOUDKEEPER"

// parseEnv overlays values from CLOUDKEEPER_* environment variables. Only
// variables that are actually set override the current value. Durations
// accept Go duration strings ("2h", "500ms").
func parseEnv(config *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	boolean := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	integer := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	str("endpoint_addr_http", &config.EndpointAddrHTTP)
	str("database_dsn", &config.DatabaseDSN)
	str("secret_key", &config.SecretKey)
	if v.IsSet("access_token_validity_duration") {
		config.AccessTokenValidityDuration = v.GetDuration("access_token_validity_duration")
	}
	str("storage_root", &config.StorageRoot)
	boolean("read_only", &config.ReadOnly)
	boolean("registration_enabled", &config.RegistrationEnabled)
	str("tls_cert_path", &config.TLSCertPath)
	str("tls_key_path", &config.TLSKeyPath)
	if v.IsSet("rate_limit_period") {
		config.RateLimitPeriod = v.GetDuration("rate_limit_period")
	}
	integer("rate_limit_burst", &config.RateLimitBurst)
	str("redis_addr", &config.RedisAddr)
	str("redis_password", &config.RedisPassword)
	integer("max_sessions", &config.MaxSessions)
	integer("workers", &config.Workers)
	if v.IsSet("max_upload_size") {
		config.MaxUploadSize = v.GetInt64("max_upload_size")
	}
	str("log_level", &config.LogLevel)
	boolean("verify_email_domain", &config.VerifyEmailDomain)
}
