package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is the output encoding of a logger.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Environment names understood by WithEnvironment and Config.Env.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config holds logger settings loaded from the environment.
type Config struct {
	Service string `env:"LOG_SERVICE" envDefault:"mailqueue"` // service attribute on every record
	Env     string `env:"APP_ENV" envDefault:"development"`   // development, staging or production
	Level   string `env:"LOG_LEVEL"`                          // overrides the environment default when set
	Format  string `env:"LOG_FORMAT"`                         // json or text; overrides the environment default
}

type preset struct {
	level  slog.Level
	format Format
}

var presets = map[string]preset{
	EnvDevelopment: {level: slog.LevelDebug, format: FormatText},
	EnvStaging:     {level: slog.LevelInfo, format: FormatJSON},
	EnvProduction:  {level: slog.LevelInfo, format: FormatJSON},
}

var envAliases = map[string]string{
	"dev":   EnvDevelopment,
	"stage": EnvStaging,
	"prod":  EnvProduction,
}

// normalizeEnv maps aliases and unknown names onto the three environments.
func normalizeEnv(env string) string {
	env = strings.ToLower(strings.TrimSpace(env))
	if alias, ok := envAliases[env]; ok {
		return alias
	}
	if _, ok := presets[env]; ok {
		return env
	}
	return EnvDevelopment
}

// Option configures New.
type Option func(*options)

type options struct {
	level      slog.Level
	format     Format
	output     io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
}

func WithLevel(l slog.Level) Option {
	return func(o *options) { o.level = l }
}

// WithFormat panics on anything but FormatJSON and FormatText, so a typo in
// wiring code fails at startup.
func WithFormat(f Format) Option {
	if f != FormatJSON && f != FormatText {
		panic(fmt.Errorf("invalid log format %q: must be %q or %q", f, FormatJSON, FormatText))
	}
	return func(o *options) { o.format = f }
}

// WithOutput sets the destination writer. Nil keeps the current one.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.output = w
		}
	}
}

// WithAttr adds static attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(o *options) { o.attrs = append(o.attrs, attrs...) }
}

// WithContextExtractors registers per-record context extractors. Nil
// extractors are skipped.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(o *options) { o.extractors = append(o.extractors, extractors...) }
}

// WithContextValue logs ctx.Value(key) under name whenever it is set.
func WithContextValue(name string, key any) Option {
	return func(o *options) {
		if name == "" || key == nil {
			return
		}
		o.extractors = append(o.extractors, func(ctx context.Context) (slog.Attr, bool) {
			v := ctx.Value(key)
			if v == nil {
				return slog.Attr{}, false
			}
			return slog.Any(name, v), true
		})
	}
}

// WithEnvironment applies the level and format preset of env and tags every
// record with service and env. Unknown environments fall back to development.
// An empty service leaves the logger untouched.
func WithEnvironment(env, service string) Option {
	return func(o *options) {
		if service == "" {
			return
		}
		env = normalizeEnv(env)
		p := presets[env]
		o.level = p.level
		o.format = p.format
		o.attrs = append(o.attrs, slog.String("service", service), slog.String("env", env))
	}
}

// FromConfig applies the environment preset and then the explicit level and
// format overrides from cfg. Invalid overrides are ignored.
func FromConfig(cfg Config) Option {
	return func(o *options) {
		WithEnvironment(cfg.Env, cfg.Service)(o)
		if cfg.Level != "" {
			var lvl slog.Level
			if err := lvl.UnmarshalText([]byte(cfg.Level)); err == nil {
				o.level = lvl
			}
		}
		if f := Format(strings.ToLower(cfg.Format)); f == FormatJSON || f == FormatText {
			o.format = f
		}
	}
}

// New builds a context-aware *slog.Logger. Defaults are JSON at info level
// on stdout.
func New(opts ...Option) *slog.Logger {
	o := &options{
		level:  slog.LevelInfo,
		format: FormatJSON,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(o)
	}

	handlerOpts := &slog.HandlerOptions{Level: o.level}
	var handler slog.Handler = slog.NewJSONHandler(o.output, handlerOpts)
	if o.format == FormatText {
		handler = slog.NewTextHandler(o.output, handlerOpts)
	}
	if len(o.attrs) > 0 {
		handler = handler.WithAttrs(o.attrs)
	}

	return slog.New(newContextHandler(handler, o.extractors))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
