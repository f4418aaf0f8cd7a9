package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dtro/pkg/platform/sentinel"
)

// LogicRule is one named business rule: a JSON-logic boolean expression plus
// the message and document path reported when it fails.
type LogicRule struct {
	Name       string          `json:"name"`
	Message    string          `json:"message"`
	Path       string          `json:"path"`
	Expression json.RawMessage `json:"rule"`
}

// RuleSource provides the logic rules for a version key such as "dtro-3.1.2".
type RuleSource interface {
	Rules(ctx context.Context, key string) ([]LogicRule, error)
}

// FileRuleSource loads rule sets from "<dir>/<key>.json" files, caching each
// set after first read.
type FileRuleSource struct {
	dir string

	mu    sync.RWMutex
	cache map[string][]LogicRule
}

// NewFileRuleSource returns a rule source reading from dir.
func NewFileRuleSource(dir string) (*FileRuleSource, error) {
	if dir == "" {
		return nil, fmt.Errorf("rule directory is required")
	}
	return &FileRuleSource{
		dir:   dir,
		cache: make(map[string][]LogicRule),
	}, nil
}

// Rules implements RuleSource. A missing rule set reports
// sentinel.ErrNotFound.
func (s *FileRuleSource) Rules(_ context.Context, key string) ([]LogicRule, error) {
	s.mu.RLock()
	rules, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return rules, nil
	}

	raw, err := os.ReadFile(filepath.Join(s.dir, key+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("rule set %s: %w", key, sentinel.ErrNotFound)
		}
		return nil, err
	}

	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parse rule set %s: %w", key, err)
	}

	s.mu.Lock()
	s.cache[key] = rules
	s.mu.Unlock()
	return rules, nil
}

// StaticRuleSource serves a fixed in-memory rule map. Used in tests and as
// the empty fallback when no rule directory is configured.
type StaticRuleSource map[string][]LogicRule

// Rules implements RuleSource.
func (s StaticRuleSource) Rules(_ context.Context, key string) ([]LogicRule, error) {
	rules, ok := s[key]
	if !ok {
		return nil, fmt.Errorf("rule set %s: %w", key, sentinel.ErrNotFound)
	}
	return rules, nil
}
