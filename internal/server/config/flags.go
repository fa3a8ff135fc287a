package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/cloudkeeper/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     HTTP bind address (e.g. ":8080")
//	-d string     database DSN (postgres://... or sqlite:...)
//	-s string     session token HMAC secret (>= 32 bytes)
//	-t int        session token validity, minutes
//	-r string     storage root directory
//	-ro           read-only mode
//	-reg          registration enabled
//	-tls-cert     TLS certificate path
//	-tls-key      TLS private key path
//	-rl-period    rate limit period, milliseconds per token
//	-rl-burst     rate limit burst size
//	-redis        redis address
//	-sessions     max concurrent sessions per user
//	-w int        concurrent filesystem operations
//	-l string     log level
//
// Duration flags are integers in the unit given above.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:],
		[]string{"-a", "-d", "-s", "-t", "-r", "-tls-cert", "-tls-key", "-rl-period", "-rl-burst", "-redis", "-sessions", "-w", "-l"},
		"-ro", "-reg",
	)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	fs.StringVar(&config.StorageRoot, "r", config.StorageRoot, "storage root directory")
	fs.BoolVar(&config.ReadOnly, "ro", config.ReadOnly, "read-only mode")
	fs.BoolVar(&config.RegistrationEnabled, "reg", config.RegistrationEnabled, "registration enabled")
	fs.StringVar(&config.TLSCertPath, "tls-cert", config.TLSCertPath, "TLS certificate path")
	fs.StringVar(&config.TLSKeyPath, "tls-key", config.TLSKeyPath, "TLS key path")
	rateLimitPeriod := fs.Int64("rl-period", config.RateLimitPeriod.Milliseconds(), "rate limit period (in milliseconds)")
	fs.IntVar(&config.RateLimitBurst, "rl-burst", config.RateLimitBurst, "rate limit burst size")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.IntVar(&config.MaxSessions, "sessions", config.MaxSessions, "max concurrent sessions per user (0 = unlimited)")
	fs.IntVar(&config.Workers, "w", config.Workers, "concurrent filesystem operations")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// only explicitly given flags override sub-unit values from JSON or env
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
		case "rl-period":
			config.RateLimitPeriod = time.Duration(*rateLimitPeriod) * time.Millisecond
		}
	})
}
