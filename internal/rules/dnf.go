package rules

import (
	"errors"
	"fmt"
)

// Conjunction is an AND of leaf conditions. A normalized expression is an OR
// of conjunctions.
type Conjunction []Condition

// Normalize flattens a condition tree to disjunctive normal form in three
// passes: XOR expansion, negation propagation, then the flattening itself.
// Errors indicate a malformed tree (empty set, too few XOR operands), not a
// user validation failure.
func Normalize(set ConditionSet) ([]Conjunction, error) {
	expanded, err := expandXOrSet(set)
	if err != nil {
		return nil, err
	}
	return setToDnf(propagateNegationSet(expanded))
}

// Contradictory reports whether no assignment of attribute values can satisfy
// the condition set: every DNF disjunct must contain a contradicting pair of
// leaves.
func Contradictory(set ConditionSet) (bool, error) {
	dnf, err := Normalize(set)
	if err != nil {
		return false, err
	}
	for _, conjunction := range dnf {
		if !hasContradiction(conjunction) {
			return false, nil
		}
	}
	return true, nil
}

func hasContradiction(conjunction Conjunction) bool {
	for i := 0; i < len(conjunction); i++ {
		for j := i + 1; j < len(conjunction); j++ {
			if conjunction[i].Contradicts(conjunction[j]) {
				return true
			}
		}
	}
	return false
}

func expandXOr(condition Condition) (Condition, error) {
	set, ok := condition.(ConditionSet)
	if !ok {
		return condition, nil
	}
	return expandXOrSet(set)
}

func expandXOrSet(set ConditionSet) (ConditionSet, error) {
	if set.Operator != OperatorXOr {
		children := make([]Condition, 0, len(set.Conditions))
		for _, child := range set.Conditions {
			expanded, err := expandXOr(child)
			if err != nil {
				return ConditionSet{}, err
			}
			children = append(children, expanded)
		}
		return ConditionSet{Operator: set.Operator, Negate: set.Negate, Conditions: children}, nil
	}

	if len(set.Conditions) < 2 {
		return ConditionSet{}, errors.New("xOr condition set needs at least two children")
	}

	// N-ary XOR expands pairwise, left to right.
	expanded, err := expandXOrPair(set.Conditions[0], set.Conditions[1])
	if err != nil {
		return ConditionSet{}, err
	}
	for _, child := range set.Conditions[2:] {
		expanded, err = expandXOrPair(expanded, child)
		if err != nil {
			return ConditionSet{}, err
		}
	}
	return expanded, nil
}

// expandXOrPair rewrites XOr(a, b) as (a || b) && !(a && b).
func expandXOrPair(left, right Condition) (ConditionSet, error) {
	left, err := expandXOr(left)
	if err != nil {
		return ConditionSet{}, err
	}
	right, err = expandXOr(right)
	if err != nil {
		return ConditionSet{}, err
	}
	return ConditionSet{
		Operator: OperatorAnd,
		Conditions: []Condition{
			ConditionSet{Operator: OperatorOr, Conditions: []Condition{left, right}},
			ConditionSet{Operator: OperatorAnd, Negate: true, Conditions: []Condition{left, right}},
		},
	}, nil
}

func propagateNegation(condition Condition) Condition {
	set, ok := condition.(ConditionSet)
	if !ok {
		return condition
	}
	return propagateNegationSet(set)
}

// propagateNegationSet pushes set-level negation down via De Morgan until only
// leaves carry negation.
func propagateNegationSet(set ConditionSet) ConditionSet {
	children := make([]Condition, 0, len(set.Conditions))

	if set.Negate {
		op := OperatorAnd
		if set.Operator == OperatorAnd {
			op = OperatorOr
		}
		for _, child := range set.Conditions {
			children = append(children, propagateNegation(child.Negated()))
		}
		return ConditionSet{Operator: op, Conditions: children}
	}

	for _, child := range set.Conditions {
		children = append(children, propagateNegation(child))
	}
	return ConditionSet{Operator: set.Operator, Conditions: children}
}

func toDnf(condition Condition) ([]Conjunction, error) {
	set, ok := condition.(ConditionSet)
	if !ok {
		return []Conjunction{{condition}}, nil
	}
	return setToDnf(set)
}

func setToDnf(set ConditionSet) ([]Conjunction, error) {
	if set.Operator != OperatorAnd && set.Operator != OperatorOr {
		return nil, fmt.Errorf("operator %q not expanded before flattening", set.Operator)
	}
	if len(set.Conditions) == 0 {
		return nil, errors.New("condition set has no children")
	}

	result, err := toDnf(set.Conditions[0])
	if err != nil {
		return nil, err
	}
	for _, child := range set.Conditions[1:] {
		next, err := toDnf(child)
		if err != nil {
			return nil, err
		}
		if set.Operator == OperatorAnd {
			result = crossProduct(result, next)
		} else {
			result = append(result, next...)
		}
	}
	return result, nil
}

// crossProduct conjoins two DNF forms: every pair of disjuncts merges into one
// longer conjunction.
func crossProduct(first, second []Conjunction) []Conjunction {
	result := make([]Conjunction, 0, len(first)*len(second))
	for _, f := range first {
		for _, s := range second {
			combined := make(Conjunction, 0, len(f)+len(s))
			combined = append(combined, f...)
			combined = append(combined, s...)
			result = append(result, combined)
		}
	}
	return result
}
