package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/diegoholiveira/jsonlogic/v3"

	"dtro/internal/dtro/models"
)

// Versions below this have no declarative rule sets; logic validation is
// skipped entirely for them.
var logicRuleThreshold = models.SchemaVersion{Major: 3, Minor: 1, Patch: 2}

// LogicValidator evaluates the versioned JSON-logic rule set against a
// submission's payload.
type LogicValidator struct {
	source RuleSource
}

// NewLogicValidator returns a validator backed by the given rule source.
func NewLogicValidator(source RuleSource) (*LogicValidator, error) {
	if source == nil {
		return nil, fmt.Errorf("rule source is required")
	}
	return &LogicValidator{source: source}, nil
}

// ValidateCreation applies every rule for the record's schema version. A rule
// fails only when its expression evaluates to boolean false; non-boolean
// results pass. Rule source failures propagate as-is.
func (v *LogicValidator) ValidateCreation(ctx context.Context, record *models.Record) ([]SemanticError, error) {
	if !record.SchemaVersion.AtLeast(logicRuleThreshold) {
		return nil, nil
	}

	rules, err := v.source.Rules(ctx, fmt.Sprintf("dtro-%s", record.SchemaVersion))
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(record.Data)
	if err != nil {
		return nil, fmt.Errorf("serialize payload: %w", err)
	}

	var errors []SemanticError
	for _, rule := range rules {
		var result bytes.Buffer
		if err := jsonlogic.Apply(bytes.NewReader(rule.Expression), bytes.NewReader(data), &result); err != nil {
			return nil, fmt.Errorf("apply rule %s: %w", rule.Name, err)
		}

		var value any
		if err := json.Unmarshal(result.Bytes(), &value); err != nil {
			continue
		}
		if passed, ok := value.(bool); ok && !passed {
			errors = append(errors, SemanticError{Message: rule.Message, Path: rule.Path})
		}
	}
	return errors, nil
}
