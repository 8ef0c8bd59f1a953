package runner

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/core/parser"
	"github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, content string) *parser.File {
	t.Helper()
	file, err := parser.Parse(content, "test.http")
	require.NoError(t, err)
	return file
}

func TestNewRunner(t *testing.T) {
	r := NewRunner(http.NewClient(), nil)
	assert.NotNil(t, r.config)
	assert.NotNil(t, r.logger)
}

func TestRunner_RunFile(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "ok", "items": [1, 2, 3]}`))
	}))
	defer server.Close()

	content := `### check
GET ` + server.URL + `/test

>>>
expect status == 200
expect body.status == ok
expect body.items.# == 3
<<<`
	path := filepath.Join(t.TempDir(), "test.http")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	result, err := NewRunner(http.NewClient(), nil).RunFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, path, result.File)
	assert.Equal(t, 1, result.Passed)
	assert.Zero(t, result.Failed)
	assert.True(t, result.Ok())
	require.Len(t, result.Results, 1)
	assert.Equal(t, "check", result.Results[0].Name)
	assert.Len(t, result.Results[0].Assertions, 3)
}

func TestRunner_RunFile_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.http")
	require.NoError(t, os.WriteFile(path, []byte("GET http://x\n>>>\n"), 0644))

	_, err := NewRunner(http.NewClient(), nil).RunFile(context.Background(), path)
	assert.Error(t, err)
}

func TestRunner_ChainsCaptures(t *testing.T) {
	var gotAuth, gotBody string
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.URL.Path {
		case "/login/":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"token": "t0k", "user": {"id": 9}}`))
		case "/orders/":
			gotAuth = r.Header.Get("Authorization")
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			w.WriteHeader(nethttp.StatusCreated)
		default:
			w.WriteHeader(nethttp.StatusNotFound)
		}
	}))
	defer server.Close()

	file := parse(t, `@base = `+server.URL+`

### login
POST {{base}}/login

>>>
capture body.token
capture body.user
<<<

### order
POST {{base}}/orders
Authorization: Bearer {{login.body.token}}

{"user": {{login.body.user}}}
`)

	result := NewRunner(http.NewClient(), nil).Run(context.Background(), file)
	assert.Equal(t, 2, result.Passed)
	assert.Equal(t, "Bearer t0k", gotAuth)
	assert.JSONEq(t, `{"user": {"id": 9}}`, gotBody)
	assert.Equal(t, "t0k", result.Results[0].Captures["body.token"])
}

func TestRunner_Bail(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		hits.Add(1)
		w.WriteHeader(nethttp.StatusInternalServerError)
	}))
	defer server.Close()

	file := parse(t, "GET "+server.URL+"/a\n\n###\nGET "+server.URL+"/b\n")

	result := NewRunner(http.NewClient(), &Config{Bail: true}).Run(context.Background(), file)
	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Skipped)
	assert.False(t, result.Ok())
	assert.Equal(t, "#2", result.Results[1].Name)
	assert.Equal(t, "earlier request failed", result.Results[1].SkipReason)

	result = NewRunner(http.NewClient(), nil).Run(context.Background(), file)
	assert.Equal(t, 2, result.Failed)
}

func TestRunner_NameFilter(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {}))
	defer server.Close()

	file := parse(t, "### users-list\nGET "+server.URL+"\n\n### users-get\nGET "+server.URL+"\n\n### health\nGET "+server.URL+"\n")

	result := NewRunner(http.NewClient(), &Config{NameFilter: "Users-*"}).Run(context.Background(), file)
	assert.Equal(t, 2, result.Passed)
	assert.Equal(t, 1, result.Skipped)
}

func TestRunner_Variables(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gotQuery = r.URL.RawQuery
	}))
	defer server.Close()

	file := parse(t, "@page = 1\nGET "+server.URL+"\n?page={{page}}\n")

	NewRunner(http.NewClient(), &Config{Variables: map[string]string{"page": "4"}}).Run(context.Background(), file)
	assert.Equal(t, "page=4", gotQuery)
}

func TestRunner_BadExpect(t *testing.T) {
	file := parse(t, "GET http://127.0.0.1:1\n\n>>>\nexpect status\n<<<\n")
	result := NewRunner(http.NewClient(), nil).Run(context.Background(), file)
	require.Len(t, result.Results, 1)
	assert.Error(t, result.Results[0].Error)
	assert.Equal(t, 1, result.Failed)
}

func TestRunner_Parallel(t *testing.T) {
	var inFlight, peak atomic.Int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		inFlight.Add(-1)
	}))
	defer server.Close()

	content := ""
	for range 4 {
		content += "###\nGET " + server.URL + "\n\n"
	}
	file := parse(t, content)

	result := NewRunner(http.NewClient(), &Config{Parallel: true, Concurrency: 2}).Run(context.Background(), file)
	assert.Equal(t, 4, result.Passed)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Greater(t, peak.Load(), int32(1))
}

func TestRunner_Cancelled(t *testing.T) {
	file := parse(t, "GET http://127.0.0.1:1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewRunner(http.NewClient(), nil).Run(ctx, file)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "cancelled", result.Results[0].SkipReason)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "abc", stringify("abc"))
	assert.Equal(t, "9", stringify(float64(9)))
	assert.Equal(t, "true", stringify(true))

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(stringify(map[string]any{"a": 1})), &m))
	assert.EqualValues(t, 1, m["a"])
}

func TestWaitFor(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(nethttp.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	err := WaitFor(context.Background(), http.NewClient(), WaitConfig{
		URL:      server.URL,
		Timeout:  2 * time.Second,
		Interval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, hits.Load())
}

func TestWaitFor_Timeout(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer server.Close()

	err := WaitFor(context.Background(), http.NewClient(), WaitConfig{
		URL:      server.URL,
		Status:   nethttp.StatusNoContent,
		Timeout:  50 * time.Millisecond,
		Interval: 10 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got status 200")
}
