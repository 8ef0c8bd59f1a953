// Package snapshot compares response bodies against values stored in a
// snapshot file, recording new ones when asked to.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/abdul-hamid-achik/hitwire/packages/http"
)

// Ext is the conventional snapshot file extension
const Ext = ".snap.json"

// Store holds the snapshots of one file, keyed by request.
type Store struct {
	path   string
	update bool

	mu        sync.Mutex
	snapshots map[string]any
}

// Result is the outcome of a comparison
type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Created  bool
	Updated  bool
}

// NewStore returns a store backed by path. In update mode missing or
// mismatched snapshots are written instead of failing.
func NewStore(path string, update bool) *Store {
	return &Store{path: path, update: update}
}

// Key names the snapshot of a request
func Key(method http.Method, url string) string {
	return string(method) + " " + url
}

// Value is what gets snapshotted for resp: the decoded JSON body, or the
// body text when it is not JSON.
func Value(resp *http.Response) any {
	if v, err := resp.BodyJSON(); err == nil {
		return v
	}
	return resp.BodyString()
}

// Compare checks actual against the snapshot stored under key.
func (s *Store) Compare(key string, actual any) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &Result{Actual: actual}

	if err := s.load(); err != nil {
		result.Message = fmt.Sprintf("failed to load snapshots: %v", err)
		return result
	}

	expected, exists := s.snapshots[key]
	if exists && equal(expected, actual) {
		result.Passed = true
		result.Expected = expected
		return result
	}

	if !s.update {
		result.Expected = expected
		if !exists {
			result.Message = "snapshot does not exist (re-run with --update-snapshot to create it)"
		} else {
			result.Message = "snapshot mismatch"
		}
		return result
	}

	s.snapshots[key] = actual
	if err := s.save(); err != nil {
		result.Message = fmt.Sprintf("failed to save snapshot: %v", err)
		return result
	}

	result.Passed = true
	result.Expected = actual
	if exists {
		result.Updated = true
		result.Message = "snapshot updated"
	} else {
		result.Created = true
		result.Message = "new snapshot created"
	}
	return result
}

func (s *Store) load() error {
	if s.snapshots != nil {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.snapshots = make(map[string]any)
			return nil
		}
		return err
	}

	snapshots := make(map[string]any)
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return err
	}
	s.snapshots = snapshots
	return nil
}

func (s *Store) save() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(s.snapshots, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, append(data, '\n'), 0644)
}

// equal compares through a JSON round trip so numbers decoded from a file
// match numbers built in memory.
func equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
