package rules

import (
	"cmp"
	"encoding/json"
	"fmt"
	"strings"
)

type operand[T cmp.Ordered] struct {
	Operator string `json:"operator"`
	Value    T      `json:"value"`
}

// ParseRules decodes a JSON array of {operator, value} operands into a single
// rule: one operand yields that rule, two operands combine as a conjunction
// (a bounded range like ">=3" and "<7"). Any other length is a parse error.
//
// Operators are matched case-insensitively by prefix: "equalTo",
// "greaterThan[OrEqualTo]" and "lessThan[OrEqualTo]"; the "orEqualTo" suffix
// makes the comparison inclusive.
func ParseRules[T cmp.Ordered](raw json.RawMessage) (Rule[T], error) {
	var operands []operand[T]
	if err := json.Unmarshal(raw, &operands); err != nil {
		return nil, fmt.Errorf("decode value rule operands: %w", err)
	}

	switch len(operands) {
	case 1:
		return toRule(operands[0])
	case 2:
		first, err := toRule(operands[0])
		if err != nil {
			return nil, err
		}
		second, err := toRule(operands[1])
		if err != nil {
			return nil, err
		}
		return And[T]{First: first, Second: second}, nil
	default:
		return nil, fmt.Errorf("value rule must have 1 or 2 operands, got %d", len(operands))
	}
}

func toRule[T cmp.Ordered](op operand[T]) (Rule[T], error) {
	name := strings.ToLower(op.Operator)
	inclusive := strings.HasSuffix(name, "orequalto")

	switch {
	case strings.HasPrefix(name, "equalto"):
		return Equality[T]{Value: op.Value}, nil
	case strings.HasPrefix(name, "greaterthan"):
		return MoreThan[T]{Value: op.Value, Inclusive: inclusive}, nil
	case strings.HasPrefix(name, "lessthan"):
		return LessThan[T]{Value: op.Value, Inclusive: inclusive}, nil
	default:
		return nil, fmt.Errorf("unknown value rule operator %q", op.Operator)
	}
}
