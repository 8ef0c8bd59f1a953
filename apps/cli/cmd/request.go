package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/assertions"
	"github.com/abdul-hamid-achik/hitwire/packages/capture"
	"github.com/abdul-hamid-achik/hitwire/packages/contract"
	"github.com/abdul-hamid-achik/hitwire/packages/core/parser"
	"github.com/abdul-hamid-achik/hitwire/packages/curl"
	"github.com/abdul-hamid-achik/hitwire/packages/history"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/output"
	"github.com/abdul-hamid-achik/hitwire/packages/snapshot"
	"github.com/abdul-hamid-achik/hitwire/packages/sse"
	"github.com/spf13/cobra"
)

type requestOptions struct {
	targetFlags

	method         string
	url            string
	extract        []string
	expect         []string
	expectStatus   string
	schema         string
	openapi        string
	snapshot       string
	updateSnapshot bool
	requestID      bool
	watch          bool
	curl           string
	printCurl      bool
	file           string
	name           string
}

var reqOpts requestOptions

var requestCmd = &cobra.Command{
	Use:     "request [METHOD] <url>",
	Aliases: []string{"req", "r"},
	Short:   "Send one request and print the response",
	Long: `Send a single HTTP/1.1 request over a fresh connection and print the
response. The method defaults to GET when only a URL is given.

URL, headers, query and body may reference template variables:
  {{name}}        a --var, --env-file or config variable
  {{$HOME}}       an environment variable
  {{uuid()}}      a built-in function (now, timestamp, random(1,10), ...)`,
	Example: `  hitwire request https://httpbin.org/get
  hitwire request POST https://httpbin.org/post -H 'Content-Type: application/json' -d '{"id":"{{uuid()}}"}'
  hitwire request https://api.example.com/users --extract id --expect 'status == 200' --expect 'body.0.name exists'
  hitwire request --curl "curl -X POST -H 'Accept: application/json' https://httpbin.org/post"
  hitwire request --file api.http --name createUser`,
	Args: cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reqOpts.method = string(http.MethodGet)
		switch len(args) {
		case 0:
			if reqOpts.curl == "" && reqOpts.file == "" {
				return withExitCode(ExitUsageError, errors.New("a URL, --curl or --file is required"))
			}
			reqOpts.method, reqOpts.url = "", ""
		case 1:
			reqOpts.url = args[0]
		case 2:
			reqOpts.method = args[0]
			reqOpts.url = args[1]
		}
		if reqOpts.curl != "" {
			if err := applyCurl(&reqOpts, reqOpts.curl); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runRequest(ctx, cmd.OutOrStdout(), &reqOpts)
	},
}

func init() {
	addTargetFlags(requestCmd, &reqOpts.targetFlags)
	requestCmd.Flags().StringArrayVar(&reqOpts.extract, "extract", nil, "Print a value from the response: status, duration, header.Name, body or a JSON path (repeatable)")
	requestCmd.Flags().StringArrayVar(&reqOpts.expect, "expect", nil, "Assertion as '<subject> <operator> [value]', e.g. 'body.id == 1' (repeatable)")
	requestCmd.Flags().StringVar(&reqOpts.expectStatus, "expect-status", "", "Expected status: a code, a comma list or a class like 2xx")
	requestCmd.Flags().StringVar(&reqOpts.schema, "schema", "", "Validate the JSON body against a JSON Schema file")
	requestCmd.Flags().StringVar(&reqOpts.openapi, "openapi", "", "Validate the response against the matching operation in an OpenAPI 3 document")
	requestCmd.Flags().StringVar(&reqOpts.snapshot, "snapshot", "", "Compare the body with the snapshot stored in this file")
	requestCmd.Flags().BoolVar(&reqOpts.updateSnapshot, "update-snapshot", false, "Create or overwrite the stored snapshot instead of failing")
	requestCmd.Flags().BoolVar(&reqOpts.requestID, "request-id", getEnvBool("HITWIRE_REQUEST_ID", false), "Send a random X-Request-ID header (env: HITWIRE_REQUEST_ID)")
	requestCmd.Flags().BoolVarP(&reqOpts.watch, "watch", "w", false, "Re-send the request when the body file, env file or config changes")
	requestCmd.Flags().StringVar(&reqOpts.curl, "curl", "", "Build the request from a curl command line; other flags override it")
	requestCmd.Flags().StringVarP(&reqOpts.file, "file", "f", "", "Read the request from a .http file; other flags override it")
	requestCmd.Flags().StringVar(&reqOpts.name, "name", "", "With --file, the request to send, by name or 1-based position")
	requestCmd.Flags().BoolVar(&reqOpts.printCurl, "print-curl", false, "Print the request as a curl command instead of sending it")
}

// applyCurl fills o from a curl command. Method and URL arguments win over
// the command's, and -H/-q flags are layered on top of its headers and query.
func applyCurl(o *requestOptions, cmdline string) error {
	c, err := curl.Parse(cmdline)
	if err != nil {
		return withExitCode(ExitUsageError, fmt.Errorf("--curl: %w", err))
	}

	if o.url == "" {
		o.url = c.URL
		o.method = c.Method
	}

	headers := make([]string, 0, len(c.Headers)+len(o.headers))
	for _, k := range sortedKeys(c.Headers) {
		headers = append(headers, k+": "+c.Headers[k])
	}
	o.headers = append(headers, o.headers...)

	query := make([]string, 0, len(c.Query)+len(o.query))
	for _, k := range sortedKeys(c.Query) {
		query = append(query, k+"="+c.Query[k])
	}
	o.query = append(query, o.query...)

	if o.data == "" {
		o.data = c.Body
	}
	o.insecure = o.insecure || c.Insecure
	if o.timeout == "" && c.Timeout > 0 {
		o.timeout = c.Timeout.String()
	}
	return nil
}

// applyHTTPFile fills o from a request in a .http file the same way
// applyCurl does. The file's variables sit between config variables and
// --env-file; its expect and capture lines run before the flags'.
func applyHTTPFile(o *requestOptions) error {
	file, err := parser.ParseFile(o.file)
	if err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("--file: %w", err))
	}
	req, err := file.Find(o.name)
	if err != nil {
		return withExitCode(ExitUsageError, fmt.Errorf("--file: %w", err))
	}

	if o.url == "" {
		o.url = req.URL
		o.method = req.Method
	}

	headers := make([]string, 0, len(req.Headers)+len(o.headers))
	for _, h := range req.Headers {
		headers = append(headers, h.Key+": "+h.Value)
	}
	o.headers = append(headers, o.headers...)

	query := make([]string, 0, len(req.Query)+len(o.query))
	for _, q := range req.Query {
		query = append(query, q.Key+"="+q.Value)
	}
	o.query = append(query, o.query...)

	if o.data == "" {
		o.data = req.Body
	}
	o.expect = append(append([]string{}, req.Expects...), o.expect...)
	o.extract = append(append([]string{}, req.Captures...), o.extract...)
	o.fileVars = file.VariableMap()
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// runRequest sends the request once, or on every change when watching.
func runRequest(ctx context.Context, w io.Writer, o *requestOptions) error {
	prepared, expects, err := prepareRequest(o)
	if err != nil {
		return err
	}

	s, err := newSession(w, prepared.output, &prepared.targetFlags)
	if err != nil {
		return err
	}

	err = sendOnce(ctx, s, prepared, expects)
	if !o.watch {
		return err
	}

	paths := watchPaths(s.configPath, o.envFile, o.bodyFile(), o.file)
	if len(paths) == 0 {
		return withExitCode(ExitUsageError, errors.New("--watch needs a config file, --env-file, --file or an @file body to watch"))
	}

	return watchAndRun(ctx, w, paths, s.logger, func() {
		rerunRequest(ctx, w, o)
	})
}

// rerunRequest reloads config, env and .http files and sends the request
// again. Errors are printed to w; watching goes on.
func rerunRequest(ctx context.Context, w io.Writer, o *requestOptions) {
	prepared, expects, err := prepareRequest(o)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	s, err := newSession(w, prepared.output, &prepared.targetFlags)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	if err := sendOnce(ctx, s, prepared, expects); err != nil && !reported(err) {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}

// prepareRequest returns a copy of o with --file applied, and its parsed
// assertions. o itself is left untouched so watch mode can re-read the file.
func prepareRequest(o *requestOptions) (*requestOptions, []assertions.Assertion, error) {
	p := *o
	if p.file != "" {
		if err := applyHTTPFile(&p); err != nil {
			return nil, nil, err
		}
	}

	expects := make([]assertions.Assertion, 0, len(p.expect))
	for _, expr := range p.expect {
		a, err := assertions.Parse(expr)
		if err != nil {
			return nil, nil, withExitCode(ExitUsageError, fmt.Errorf("--expect %q: %w", expr, err))
		}
		expects = append(expects, a)
	}
	return &p, expects, nil
}

func sendOnce(ctx context.Context, s *session, o *requestOptions, expects []assertions.Assertion) error {
	target, err := s.buildTarget(o.method, o.url, &o.targetFlags, o.requestID)
	if err != nil {
		return err
	}

	if o.printCurl {
		c := &curl.Command{
			Method:   string(target.Method),
			URL:      target.URL,
			Headers:  target.Headers,
			Query:    target.Query,
			Body:     string(target.Body),
			Insecure: o.insecure,
		}
		if o.timeout != "" {
			c.Timeout, _ = time.ParseDuration(o.timeout)
		}
		fmt.Fprintln(s.out, c.String())
		return nil
	}

	var validator *contract.Validator
	if o.openapi != "" {
		validator, err = contract.Load(o.openapi)
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
	}

	client, err := s.newClient(&o.targetFlags)
	if err != nil {
		return err
	}
	if err := s.authorize(&target, &o.auth, client); err != nil {
		return err
	}

	resp, reqErr := client.Request(target.Method, target.URL, target.Headers, target.Query, target.Body)
	s.recordHistory(ctx, target.Method, target.URL, target.Headers, resp, reqErr)

	ex := &output.Exchange{
		Method:   string(target.Method),
		URL:      target.URL,
		Headers:  target.Headers,
		Response: resp,
		Err:      reqErr,
	}

	if reqErr == nil {
		if sse.IsEventStream(resp.ContentType()) {
			events, err := sse.Parse(resp.Body)
			if err != nil {
				s.logger.Warn("failed to decode event stream", "error", err)
			}
			ex.Events = events
		}
		ex.Captures, ex.Missing = capture.ExtractAll(resp, o.extract)

		ev := assertions.NewEvaluator(resp)
		if o.expectStatus != "" {
			ex.Assertions = append(ex.Assertions, ev.Status(o.expectStatus))
		}
		if o.schema != "" {
			ex.Assertions = append(ex.Assertions, ev.Schema(o.schema))
		}
		for _, a := range expects {
			ex.Assertions = append(ex.Assertions, ev.Evaluate(a))
		}
		if validator != nil {
			ex.Assertions = append(ex.Assertions, validator.Check(target.Method, target.URL, resp))
		}
		if o.snapshot != "" {
			ex.Assertions = append(ex.Assertions, compareSnapshot(o, target.Method, target.URL, resp))
		}
	}

	if err := s.formatter.FormatExchange(ex); err != nil {
		return err
	}

	switch {
	case reqErr != nil:
		return withExitCode(requestExitCode(reqErr), nil)
	case !ex.Passed():
		return withExitCode(ExitAssertionFailure, nil)
	}
	return nil
}

func compareSnapshot(o *requestOptions, method http.Method, url string, resp *http.Response) *assertions.Result {
	r := snapshot.NewStore(o.snapshot, o.updateSnapshot).Compare(snapshot.Key(method, url), snapshot.Value(resp))
	return &assertions.Result{
		Passed:   r.Passed,
		Message:  r.Message,
		Expected: r.Expected,
		Actual:   r.Actual,
		Subject:  "body",
		Operator: "snapshot",
	}
}

// recordHistory appends the exchange to the configured history database.
// Failures are logged and never fail the request.
func (s *session) recordHistory(ctx context.Context, method http.Method, url string, headers map[string]string, resp *http.Response, reqErr error) {
	if s.cfg.History == "" {
		return
	}

	store, err := history.Open(s.cfg.History)
	if err != nil {
		s.logger.Warn("history unavailable", "path", s.cfg.History, "error", err)
		return
	}
	defer store.Close()

	entry := history.Entry{
		Method:    string(method),
		URL:       url,
		RequestID: headers["X-Request-ID"],
	}
	if resp != nil {
		entry.StatusCode = resp.StatusCode
		entry.DurationMs = resp.DurationMs()
	}
	if reqErr != nil {
		entry.Error = reqErr.Error()
	}

	if _, err := store.Record(ctx, entry); err != nil {
		s.logger.Warn("history not recorded", "error", err)
	}
}
