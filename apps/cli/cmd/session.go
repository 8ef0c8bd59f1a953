package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/auth"
	"github.com/abdul-hamid-achik/hitwire/packages/bench"
	"github.com/abdul-hamid-achik/hitwire/packages/core/config"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/output"
	"github.com/abdul-hamid-achik/hitwire/packages/uri"
	"github.com/abdul-hamid-achik/hitwire/packages/vars"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// targetFlags shape the request sent by the request and bench commands.
type targetFlags struct {
	headers  []string
	query    []string
	data     string
	vars     []string
	envFile  string
	timeout  string
	insecure bool
	output   string
	auth     authFlags
	fileVars map[string]string // from a .http file
}

type authFlags struct {
	user         string
	bearer       string
	jwtSecret    string
	jwtClaims    []string
	jwtTTL       time.Duration
	tokenURL     string
	clientID     string
	clientSecret string
	scopes       []string
	username     string
	password     string
}

func addTargetFlags(cmd *cobra.Command, f *targetFlags) {
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	cmd.Flags().StringArrayVarP(&f.query, "query", "q", nil, "Query parameter as key=value (repeatable)")
	cmd.Flags().StringVarP(&f.data, "data", "d", "", "Request body, or @file to read it from a file")
	cmd.Flags().StringArrayVar(&f.vars, "var", nil, "Template variable as name=value (repeatable)")
	cmd.Flags().StringVar(&f.envFile, "env-file", getEnvString("HITWIRE_ENV_FILE", ""), "Load template variables from a .env file (env: HITWIRE_ENV_FILE)")
	cmd.Flags().StringVar(&f.timeout, "timeout", getEnvString("HITWIRE_TIMEOUT", ""), "Connect and I/O timeout, e.g. 5s (env: HITWIRE_TIMEOUT)")
	cmd.Flags().BoolVarP(&f.insecure, "insecure", "k", getEnvBool("HITWIRE_INSECURE", false), "Skip TLS certificate validation (env: HITWIRE_INSECURE)")
	cmd.Flags().StringVarP(&f.output, "output", "o", getEnvString("HITWIRE_OUTPUT", output.FormatConsole), "Output format: console, json (env: HITWIRE_OUTPUT)")

	a := &f.auth
	cmd.Flags().StringVarP(&a.user, "user", "u", "", "Basic auth credentials as user:password")
	cmd.Flags().StringVar(&a.bearer, "bearer", getEnvString("HITWIRE_BEARER_TOKEN", ""), "Bearer token (env: HITWIRE_BEARER_TOKEN)")
	cmd.Flags().StringVar(&a.jwtSecret, "jwt-secret", getEnvString("HITWIRE_JWT_SECRET", ""), "Sign an HS256 JWT with this secret and send it as a bearer token (env: HITWIRE_JWT_SECRET)")
	cmd.Flags().StringArrayVar(&a.jwtClaims, "jwt-claim", nil, "JWT claim as name=value; JSON values keep their type (repeatable)")
	cmd.Flags().DurationVar(&a.jwtTTL, "jwt-ttl", 15*time.Minute, "JWT lifetime; 0 omits exp")
	cmd.Flags().StringVar(&a.tokenURL, "oauth2-token-url", getEnvString("HITWIRE_OAUTH2_TOKEN_URL", ""), "Fetch an OAuth2 bearer token from this endpoint (env: HITWIRE_OAUTH2_TOKEN_URL)")
	cmd.Flags().StringVar(&a.clientID, "oauth2-client-id", getEnvString("HITWIRE_OAUTH2_CLIENT_ID", ""), "OAuth2 client ID (env: HITWIRE_OAUTH2_CLIENT_ID)")
	cmd.Flags().StringVar(&a.clientSecret, "oauth2-client-secret", getEnvString("HITWIRE_OAUTH2_CLIENT_SECRET", ""), "OAuth2 client secret (env: HITWIRE_OAUTH2_CLIENT_SECRET)")
	cmd.Flags().StringArrayVar(&a.scopes, "oauth2-scope", nil, "OAuth2 scope (repeatable)")
	cmd.Flags().StringVar(&a.username, "oauth2-username", "", "Resource owner username; selects the password grant")
	cmd.Flags().StringVar(&a.password, "oauth2-password", getEnvString("HITWIRE_OAUTH2_PASSWORD", ""), "Resource owner password (env: HITWIRE_OAUTH2_PASSWORD)")
}

// bodyFile returns the file named by an @file body, if any.
func (f *targetFlags) bodyFile() string {
	if path, ok := strings.CutPrefix(f.data, "@"); ok {
		return path
	}
	return ""
}

// session is the per-invocation state shared by commands
type session struct {
	out        io.Writer
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	formatter  output.Formatter
	expander   *vars.Expander
	verbose    bool
}

// newSession loads config and builds the logger, formatter and template
// expander. f may be nil for commands that send no request.
func newSession(w io.Writer, format string, f *targetFlags) (*session, error) {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}

	verbose := verboseFlag || cfg.GetVerbose()
	noColor := noColorFlag || cfg.GetNoColor()
	logger := newLogger(os.Stderr, verbose)

	if format == "" {
		format = output.FormatConsole
	}
	formatter, err := output.New(format, w, verbose, noColor)
	if err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}

	s := &session{
		out:        w,
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		formatter:  formatter,
		verbose:    verbose,
	}

	if f != nil {
		variables, err := collectVariables(cfg, f)
		if err != nil {
			return nil, err
		}
		s.expander = vars.New(variables, vars.WithLogger(logger))
	} else {
		s.expander = vars.New(cfg.Variables, vars.WithLogger(logger))
	}

	return s, nil
}

func loadConfig() (*config.Config, string, error) {
	if configFlag != "" {
		cfg, err := config.LoadConfig(configFlag)
		return cfg, configFlag, err
	}
	path := config.FindConfigFile(".")
	cfg, err := config.FindAndLoadConfig(".")
	return cfg, path, err
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// collectVariables layers config variables, the env file and --var flags,
// later sources winning.
func collectVariables(cfg *config.Config, f *targetFlags) (map[string]string, error) {
	variables := make(map[string]string, len(cfg.Variables))
	for k, v := range cfg.Variables {
		variables[k] = v
	}
	for k, v := range f.fileVars {
		variables[k] = v
	}

	if f.envFile != "" {
		fileVars, err := vars.LoadDotEnv(f.envFile)
		if err != nil {
			return nil, withExitCode(ExitConfigError, err)
		}
		for k, v := range fileVars {
			variables[k] = v
		}
	}

	flagVars, err := vars.ParseAssignments(f.vars)
	if err != nil {
		return nil, withExitCode(ExitUsageError, fmt.Errorf("--var: %w", err))
	}
	for k, v := range flagVars {
		variables[k] = v
	}

	return variables, nil
}

func (s *session) clientOptions(f *targetFlags) ([]http.ClientOption, error) {
	timeout := s.cfg.TimeoutDuration()
	if f.timeout != "" {
		d, err := time.ParseDuration(f.timeout)
		if err != nil {
			return nil, withExitCode(ExitUsageError, fmt.Errorf("invalid --timeout %q: %w", f.timeout, err))
		}
		timeout = d
	}

	opts := []http.ClientOption{
		http.WithValidateSSL(s.cfg.GetValidateSSL() && !f.insecure),
		http.WithLogger(s.logger),
	}
	if timeout > 0 {
		opts = append(opts, http.WithTimeout(timeout))
	}
	return opts, nil
}

func (s *session) newClient(f *targetFlags) (*http.Client, error) {
	opts, err := s.clientOptions(f)
	if err != nil {
		return nil, err
	}
	return http.NewClient(opts...), nil
}

// buildTarget expands templates and assembles the request. Config headers
// are sent first and -H flags override them.
func (s *session) buildTarget(method, rawURL string, f *targetFlags, requestID bool) (bench.Target, error) {
	m := http.ParseMethod(s.expander.Expand(method))
	if !m.Valid() {
		return bench.Target{}, withExitCode(ExitUsageError, fmt.Errorf("%w: %q", http.ErrInvalidMethod, m))
	}

	target := bench.Target{
		Method:  m,
		URL:     s.expander.Expand(rawURL),
		Headers: s.expander.ExpandMap(s.cfg.Headers),
	}
	if target.Headers == nil {
		target.Headers = make(map[string]string)
	}

	if _, err := uri.Parse(target.URL); err != nil {
		return bench.Target{}, withExitCode(ExitUsageError, err)
	}

	flagHeaders, err := parseHeaders(f.headers)
	if err != nil {
		return bench.Target{}, withExitCode(ExitUsageError, err)
	}
	for k, v := range s.expander.ExpandMap(flagHeaders) {
		target.Headers[k] = v
	}

	if requestID && !hasHeader(target.Headers, "X-Request-ID") {
		target.Headers["X-Request-ID"] = uuid.NewString()
	}

	query, err := vars.ParseAssignments(f.query)
	if err != nil {
		return bench.Target{}, withExitCode(ExitUsageError, fmt.Errorf("--query: %w", err))
	}
	target.Query = s.expander.ExpandMap(query)

	body, err := readBody(f.data)
	if err != nil {
		return bench.Target{}, withExitCode(ExitUsageError, err)
	}
	if body != "" {
		target.Body = []byte(s.expander.Expand(body))
	}

	return target, nil
}

// authorize sets the Authorization header from the auth flags. A header
// given with -H or in config is left alone. OAuth2 tokens are fetched with
// client.
func (s *session) authorize(target *bench.Target, a *authFlags, client auth.Poster) error {
	if hasHeader(target.Headers, "Authorization") {
		return nil
	}

	var value string
	switch {
	case a.user != "":
		v, err := auth.Basic(s.expander.Expand(a.user))
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		value = v

	case a.bearer != "":
		value = auth.Bearer(s.expander.Expand(a.bearer))

	case a.jwtSecret != "":
		claims, err := auth.ParseClaims(a.jwtClaims)
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		for k, v := range claims {
			if str, ok := v.(string); ok {
				claims[k] = s.expander.Expand(str)
			}
		}
		token, err := auth.SignJWT(s.expander.Expand(a.jwtSecret), claims, a.jwtTTL)
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		value = auth.Bearer(token)

	case a.tokenURL != "":
		cfg := &auth.OAuth2Config{
			TokenURL:     s.expander.Expand(a.tokenURL),
			ClientID:     s.expander.Expand(a.clientID),
			ClientSecret: s.expander.Expand(a.clientSecret),
			Scopes:       a.scopes,
			GrantType:    auth.ClientCredentials,
		}
		if a.username != "" {
			cfg.GrantType = auth.Password
			cfg.Username = s.expander.Expand(a.username)
			cfg.Password = s.expander.Expand(a.password)
		}
		v, err := auth.NewProvider(cfg, client).Header()
		if err != nil {
			return withExitCode(ExitNetworkError, err)
		}
		s.logger.Debug("fetched oauth2 token", "tokenURL", cfg.TokenURL, "grant", cfg.GrantType)
		value = v

	default:
		return nil
	}

	target.Headers["Authorization"] = value
	return nil
}

// parseHeaders splits "Name: value" pairs on the first colon.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected 'Name: value'", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func readBody(data string) (string, error) {
	path, ok := strings.CutPrefix(data, "@")
	if !ok {
		return data, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read body file: %w", err)
	}
	return string(content), nil
}
