// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv for .env files and
// github.com/caarlos0/env/v11 for struct parsing. Every mailqueue component
// exposes a Config struct with `env` tags, so a binary wires itself with:
//
//	var storeCfg sqlitestore.Config
//	if err := config.Load(&storeCfg); err != nil {
//	    return err
//	}
//
// Load reads ./.env once per process (a missing file is fine) and caches the
// parsed value per type. LoadEnv reads explicit files; later files override
// earlier ones and variables already present in the process environment are
// never overwritten. ForceReload and ResetCache bypass or clear the cache.
//
// Errors wrap ErrParsingConfig, ErrLoadingEnvFile or ErrNilPointer and can be
// checked with errors.Is.
package config
