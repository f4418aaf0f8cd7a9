// Package validation implements the three submission checks run before a
// D-TRO document is persisted: JSON-schema structure, declarative JSON-logic
// rules, and semantic checks (condition contradictions, coordinate ranges).
package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"dtro/internal/dtro/models"
	"dtro/pkg/platform/sentinel"
)

// SchemaValidator validates payloads against versioned JSON schemas loaded
// from a directory of "<version>.json" files. Compiled schemas are cached.
type SchemaValidator struct {
	dir string

	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewSchemaValidator returns a validator reading schemas from dir.
func NewSchemaValidator(dir string) (*SchemaValidator, error) {
	if dir == "" {
		return nil, fmt.Errorf("schema directory is required")
	}
	return &SchemaValidator{
		dir:      dir,
		compiled: make(map[string]*jsonschema.Schema),
	}, nil
}

// Validate checks the payload against the schema for the given version. A
// missing schema version reports sentinel.ErrNotFound; schema violations come
// back as a list of messages with an empty error.
func (v *SchemaValidator) Validate(version models.SchemaVersion, payload map[string]any) ([]string, error) {
	schema, err := v.schemaFor(version)
	if err != nil {
		return nil, err
	}

	if err := schema.Validate(anyTree(payload)); err != nil {
		validationErr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return nil, err
		}
		return flattenValidationError(validationErr), nil
	}
	return nil, nil
}

// Versions lists the schema versions available in the directory, sorted.
func (v *SchemaValidator) Versions() ([]string, error) {
	entries, err := os.ReadDir(v.dir)
	if err != nil {
		return nil, fmt.Errorf("read schema directory: %w", err)
	}

	var versions []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		versions = append(versions, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(versions)
	return versions, nil
}

// Schema returns the raw schema document for a version.
func (v *SchemaValidator) Schema(version string) (map[string]any, error) {
	raw, err := os.ReadFile(filepath.Join(v.dir, version+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("schema version %s: %w", version, sentinel.ErrNotFound)
		}
		return nil, err
	}

	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", version, err)
	}
	return schema, nil
}

func (v *SchemaValidator) schemaFor(version models.SchemaVersion) (*jsonschema.Schema, error) {
	key := version.String()

	v.mu.RLock()
	schema, ok := v.compiled[key]
	v.mu.RUnlock()
	if ok {
		return schema, nil
	}

	raw, err := os.ReadFile(filepath.Join(v.dir, key+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("schema version %s: %w", key, sentinel.ErrNotFound)
		}
		return nil, err
	}

	schema, err = jsonschema.CompileString(key+".json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", key, err)
	}

	v.mu.Lock()
	v.compiled[key] = schema
	v.mu.Unlock()
	return schema, nil
}

// anyTree strips concrete map types so the schema library sees plain
// interface values.
func anyTree(payload map[string]any) any {
	raw, err := json.Marshal(payload)
	if err != nil {
		return payload
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return payload
	}
	return tree
}

func flattenValidationError(err *jsonschema.ValidationError) []string {
	var messages []string
	for _, entry := range err.BasicOutput().Errors {
		if entry.Error == "" || strings.HasPrefix(entry.Error, "doesn't validate with") {
			continue
		}
		location := entry.InstanceLocation
		if location == "" {
			location = "/"
		}
		messages = append(messages, fmt.Sprintf("%s: %s", location, entry.Error))
	}
	if len(messages) == 0 {
		messages = append(messages, err.Error())
	}
	return messages
}
