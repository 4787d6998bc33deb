package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// cache keeps one parsed copy per config type.
type cache struct {
	mu     sync.RWMutex
	values map[string]any
}

var (
	globalCache = &cache{values: make(map[string]any)}

	dotenvOnce sync.Once
)

// Load parses environment variables into v using `env` struct tags.
//
// The default .env file in the working directory is read once per process,
// if present. Variables already set in the environment win over file values.
// The first successful parse of a type is cached and returned by later calls
// for the same type; use ForceReload to re-read the environment.
//
//	var cfg sqlitestore.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	key := typeKey[T]()

	globalCache.mu.RLock()
	cached, ok := globalCache.values[key]
	globalCache.mu.RUnlock()
	if ok {
		*v = cached.(T)
		return nil
	}

	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()

	// Another goroutine may have parsed it while we waited for the lock.
	if cached, ok := globalCache.values[key]; ok {
		*v = cached.(T)
		return nil
	}
	return parseLocked(key, v)
}

// MustLoad works like Load but panics on failure.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// ForceReload parses the environment into v even if the type is cached and
// replaces the cached copy.
func ForceReload[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	key := typeKey[T]()

	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()
	delete(globalCache.values, key)
	return parseLocked(key, v)
}

// LoadEnv reads the given .env files into the process environment. Later
// files override earlier ones; variables set before the call are kept.
// With no paths it reads ./.env. Cached configs are dropped so the next Load
// sees the new values.
func LoadEnv(paths ...string) error {
	merged := make(map[string]string)
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		vals, err := godotenv.Read(p)
		if err != nil {
			return errors.Join(ErrLoadingEnvFile, fmt.Errorf("%s: %w", p, err))
		}
		for k, val := range vals {
			merged[k] = val
		}
	}
	for k, val := range merged {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, val); err != nil {
			return errors.Join(ErrLoadingEnvFile, err)
		}
	}
	ResetCache()
	return nil
}

// MustLoadEnv works like LoadEnv but panics on failure.
func MustLoadEnv(paths ...string) {
	if err := LoadEnv(paths...); err != nil {
		panic(fmt.Sprintf("failed to load env files: %v", err))
	}
}

// ResetCache drops every cached config.
func ResetCache() {
	globalCache.mu.Lock()
	clear(globalCache.values)
	globalCache.mu.Unlock()
}

func parseLocked[T any](key string, v *T) error {
	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	globalCache.values[key] = parsed
	*v = parsed
	return nil
}

func typeKey[T any]() string {
	t := reflect.TypeFor[T]()
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
