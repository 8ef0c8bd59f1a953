package vars

import (
	"log/slog"
	"os"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Expander resolves placeholders against a fixed set of variables. It is safe
// for concurrent use once built.
type Expander struct {
	vars      map[string]string
	funcs     *Registry
	lookupEnv func(string) (string, bool)
	logger    *slog.Logger
}

type Option func(*Expander)

// WithLogger reports unresolved placeholders at warn level.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Expander) {
		e.logger = logger
	}
}

// WithLookupEnv replaces os.LookupEnv for {{$NAME}} placeholders.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(e *Expander) {
		e.lookupEnv = fn
	}
}

// WithRegistry replaces the built-in function registry.
func WithRegistry(r *Registry) Option {
	return func(e *Expander) {
		e.funcs = r
	}
}

// New creates an Expander over a copy of vars.
func New(vars map[string]string, opts ...Option) *Expander {
	e := &Expander{
		vars:      make(map[string]string, len(vars)),
		funcs:     NewRegistry(),
		lookupEnv: os.LookupEnv,
		logger:    slog.New(slog.DiscardHandler),
	}
	for k, v := range vars {
		e.vars[k] = v
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand replaces every resolvable placeholder in input.
func (e *Expander) Expand(input string) string {
	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])
		if val, ok := e.resolve(expr); ok {
			return val
		}
		e.logger.Warn("unresolved placeholder", "expr", expr)
		return match
	})
}

// ExpandMap expands keys and values of m into a new map.
func (e *Expander) ExpandMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	result := make(map[string]string, len(m))
	for k, v := range m {
		result[e.Expand(k)] = e.Expand(v)
	}
	return result
}

// Unresolved lists the placeholder expressions in input that cannot be resolved.
func (e *Expander) Unresolved(input string) []string {
	var missing []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		if _, ok := e.resolve(expr); !ok {
			missing = append(missing, expr)
		}
	}
	return missing
}

func (e *Expander) resolve(expr string) (string, bool) {
	switch {
	case strings.HasPrefix(expr, "$"):
		return e.lookupEnv(expr[1:])
	case strings.Contains(expr, "("):
		return e.funcs.Call(expr)
	default:
		val, ok := e.vars[expr]
		return val, ok
	}
}
