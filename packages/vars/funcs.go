package vars

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math/rand/v2"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Func is a built-in placeholder function. Returning false marks the call as
// unresolved.
type Func func(args []string) (string, bool)

// Registry maps function names to implementations.
type Registry struct {
	funcs map[string]Func
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["uuid"] = funcUUID
	r.funcs["now"] = funcNow
	r.funcs["date"] = funcDate
	r.funcs["timestamp"] = funcTimestamp
	r.funcs["timestampMs"] = funcTimestampMs
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["base64"] = funcBase64
	r.funcs["sha256"] = funcSHA256
	r.funcs["bcrypt"] = funcBcrypt
	r.funcs["urlEncode"] = funcURLEncode
}

// Register adds or replaces a function.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates an expression such as `random(1, 6)`.
func (r *Registry) Call(expr string) (string, bool) {
	matches := funcCallPattern.FindStringSubmatch(expr)
	if matches == nil {
		return "", false
	}

	fn, ok := r.funcs[matches[1]]
	if !ok {
		return "", false
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}
	return fn(args)
}

// parseArgs splits on commas outside single or double quotes and strips the quotes.
func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	var quote byte

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote == 0 && (ch == '"' || ch == '\''):
			quote = ch
		case quote != 0 && ch == quote:
			quote = 0
		case quote == 0 && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	return append(args, strings.TrimSpace(current.String()))
}

func funcUUID(_ []string) (string, bool) {
	return uuid.NewString(), true
}

func funcNow(_ []string) (string, bool) {
	return time.Now().UTC().Format(time.RFC3339), true
}

func funcDate(args []string) (string, bool) {
	format := time.DateOnly
	if len(args) >= 1 && args[0] != "" {
		format = args[0]
	}
	return time.Now().UTC().Format(format), true
}

func funcTimestamp(_ []string) (string, bool) {
	return strconv.FormatInt(time.Now().Unix(), 10), true
}

func funcTimestampMs(_ []string) (string, bool) {
	return strconv.FormatInt(time.Now().UnixMilli(), 10), true
}

func funcRandom(args []string) (string, bool) {
	lo, hi := 0, 100
	if len(args) >= 2 {
		var err error
		if lo, err = strconv.Atoi(args[0]); err != nil {
			return "", false
		}
		if hi, err = strconv.Atoi(args[1]); err != nil {
			return "", false
		}
	}
	if hi < lo {
		return "", false
	}
	return strconv.Itoa(rand.IntN(hi-lo+1) + lo), true
}

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func funcRandomString(args []string) (string, bool) {
	length := 16
	if len(args) >= 1 && args[0] != "" {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return "", false
		}
		length = n
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = alphanumeric[rand.IntN(len(alphanumeric))]
	}
	return string(b), true
}

func funcBase64(args []string) (string, bool) {
	if len(args) < 1 {
		return "", false
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0])), true
}

func funcSHA256(args []string) (string, bool) {
	if len(args) < 1 {
		return "", false
	}
	sum := sha256.Sum256([]byte(args[0]))
	return hex.EncodeToString(sum[:]), true
}

func funcURLEncode(args []string) (string, bool) {
	if len(args) < 1 {
		return "", false
	}
	return url.QueryEscape(args[0]), true
}

// funcBcrypt hashes its argument at the default cost. An optional second
// argument sets the cost.
func funcBcrypt(args []string) (string, bool) {
	if len(args) < 1 {
		return "", false
	}
	cost := bcrypt.DefaultCost
	if len(args) > 1 {
		c, err := strconv.Atoi(args[1])
		if err != nil {
			return "", false
		}
		cost = c
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), cost)
	if err != nil {
		return "", false
	}
	return string(hash), true
}
