// Package rules implements the condition model embedded in D-TRO regulations:
// comparison predicates over ordered values, recursive Boolean condition trees
// and the DNF-based contradiction check run at submission time.
package rules

import (
	"cmp"
	"fmt"
)

// Rule is a predicate over a totally-ordered value type. Implementations are
// immutable value types.
//
// Contradicts is the satisfiability check used by condition validation: it
// reports whether no value can satisfy both rules. The LessThan/MoreThan
// checks ignore the other rule's inclusivity flag, so the boundary verdict
// depends on which side is asked: `<=5` does not contradict `>5`, while `>5`
// contradicts `<=5`.
type Rule[T cmp.Ordered] interface {
	// Apply evaluates the predicate against a value.
	Apply(value T) bool
	// Contradicts reports whether this rule and other exclude each other.
	// A nil other never contradicts.
	Contradicts(other Rule[T]) bool
	// Inverted returns the logical complement of this rule.
	Inverted() Rule[T]

	fmt.Stringer
}

// Equality matches exactly one value.
type Equality[T cmp.Ordered] struct {
	Value T
}

func (r Equality[T]) Apply(value T) bool { return value == r.Value }

func (r Equality[T]) Contradicts(other Rule[T]) bool {
	switch o := other.(type) {
	case nil:
		return false
	case Equality[T]:
		return !r.Apply(o.Value)
	case Inequality[T], LessThan[T], MoreThan[T], And[T], Or[T]:
		return other.Contradicts(r)
	}
	return false
}

func (r Equality[T]) Inverted() Rule[T] { return Inequality[T]{Value: r.Value} }

func (r Equality[T]) String() string { return fmt.Sprintf("=%v", r.Value) }

// Inequality matches every value but one.
type Inequality[T cmp.Ordered] struct {
	Value T
}

func (r Inequality[T]) Apply(value T) bool { return value != r.Value }

func (r Inequality[T]) Contradicts(other Rule[T]) bool {
	switch o := other.(type) {
	case nil:
		return false
	case Equality[T]:
		return r.Apply(o.Value)
	case And[T], Or[T]:
		return other.Contradicts(r)
	}
	return false
}

func (r Inequality[T]) Inverted() Rule[T] { return Equality[T]{Value: r.Value} }

func (r Inequality[T]) String() string { return fmt.Sprintf("!=%v", r.Value) }

// LessThan matches values below Value, or equal to it when Inclusive.
type LessThan[T cmp.Ordered] struct {
	Value     T
	Inclusive bool
}

func (r LessThan[T]) Apply(value T) bool {
	if value < r.Value {
		return true
	}
	return value == r.Value && r.Inclusive
}

func (r LessThan[T]) Contradicts(other Rule[T]) bool {
	switch o := other.(type) {
	case nil:
		return false
	case Equality[T]:
		return !r.Apply(o.Value)
	case MoreThan[T]:
		return !r.Apply(o.Value)
	case And[T], Or[T]:
		return other.Contradicts(r)
	}
	return false
}

func (r LessThan[T]) Inverted() Rule[T] {
	return MoreThan[T]{Value: r.Value, Inclusive: !r.Inclusive}
}

func (r LessThan[T]) String() string {
	if r.Inclusive {
		return fmt.Sprintf("<=%v", r.Value)
	}
	return fmt.Sprintf("<%v", r.Value)
}

// MoreThan matches values above Value, or equal to it when Inclusive.
type MoreThan[T cmp.Ordered] struct {
	Value     T
	Inclusive bool
}

func (r MoreThan[T]) Apply(value T) bool {
	if value > r.Value {
		return true
	}
	return value == r.Value && r.Inclusive
}

func (r MoreThan[T]) Contradicts(other Rule[T]) bool {
	switch o := other.(type) {
	case nil:
		return false
	case Equality[T]:
		return !r.Apply(o.Value)
	case LessThan[T]:
		return !r.Apply(o.Value)
	case And[T], Or[T]:
		return other.Contradicts(r)
	}
	return false
}

func (r MoreThan[T]) Inverted() Rule[T] {
	return LessThan[T]{Value: r.Value, Inclusive: !r.Inclusive}
}

func (r MoreThan[T]) String() string {
	if r.Inclusive {
		return fmt.Sprintf(">=%v", r.Value)
	}
	return fmt.Sprintf(">%v", r.Value)
}

// And is the conjunction of two rules.
type And[T cmp.Ordered] struct {
	First  Rule[T]
	Second Rule[T]
}

func (r And[T]) Apply(value T) bool {
	return r.First.Apply(value) && r.Second.Apply(value)
}

func (r And[T]) Contradicts(other Rule[T]) bool {
	if other == nil {
		return false
	}
	return other.Contradicts(r.First) || other.Contradicts(r.Second)
}

func (r And[T]) Inverted() Rule[T] {
	return Or[T]{First: r.First.Inverted(), Second: r.Second.Inverted()}
}

func (r And[T]) String() string { return fmt.Sprintf("(%s && %s)", r.First, r.Second) }

// Or is the disjunction of two rules.
type Or[T cmp.Ordered] struct {
	First  Rule[T]
	Second Rule[T]
}

func (r Or[T]) Apply(value T) bool {
	return r.First.Apply(value) || r.Second.Apply(value)
}

func (r Or[T]) Contradicts(other Rule[T]) bool {
	if other == nil {
		return false
	}
	return other.Contradicts(r.First) && other.Contradicts(r.Second)
}

func (r Or[T]) Inverted() Rule[T] {
	return And[T]{First: r.First.Inverted(), Second: r.Second.Inverted()}
}

func (r Or[T]) String() string { return fmt.Sprintf("(%s || %s)", r.First, r.Second) }
