package rules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"
)

// =============================================================================
// Value Rule Test Suite
// =============================================================================
// Justification for unit tests: the rule engine is pure logic with boundary
// behavior (inclusivity, asymmetric containment checks) that downstream
// condition validation depends on silently.

type ValueRuleSuite struct {
	suite.Suite
}

func TestValueRuleSuite(t *testing.T) {
	suite.Run(t, new(ValueRuleSuite))
}

var ruleSamples = []int{-3, 0, 3, 5, 7, 100}

// =============================================================================
// Apply Tests
// =============================================================================

func (s *ValueRuleSuite) TestApply() {
	s.Run("equality matches only its value", func() {
		r := Equality[int]{Value: 5}
		s.True(r.Apply(5))
		s.False(r.Apply(4))
		s.False(r.Apply(6))
	})

	s.Run("inequality matches everything else", func() {
		r := Inequality[int]{Value: 5}
		s.False(r.Apply(5))
		s.True(r.Apply(4))
	})

	s.Run("less than respects inclusivity", func() {
		s.False(LessThan[int]{Value: 5}.Apply(5))
		s.True(LessThan[int]{Value: 5, Inclusive: true}.Apply(5))
		s.True(LessThan[int]{Value: 5}.Apply(4))
		s.False(LessThan[int]{Value: 5, Inclusive: true}.Apply(6))
	})

	s.Run("more than respects inclusivity", func() {
		s.False(MoreThan[int]{Value: 5}.Apply(5))
		s.True(MoreThan[int]{Value: 5, Inclusive: true}.Apply(5))
		s.True(MoreThan[int]{Value: 5}.Apply(6))
		s.False(MoreThan[int]{Value: 5, Inclusive: true}.Apply(4))
	})

	s.Run("and requires both, or requires either", func() {
		between := And[int]{
			First:  MoreThan[int]{Value: 3, Inclusive: true},
			Second: LessThan[int]{Value: 7},
		}
		s.True(between.Apply(3))
		s.True(between.Apply(5))
		s.False(between.Apply(7))

		outside := Or[int]{
			First:  LessThan[int]{Value: 3},
			Second: MoreThan[int]{Value: 7},
		}
		s.True(outside.Apply(0))
		s.False(outside.Apply(5))
		s.True(outside.Apply(100))
	})
}

// =============================================================================
// Inversion Tests
// =============================================================================

func (s *ValueRuleSuite) TestInverted() {
	rules := []Rule[int]{
		Equality[int]{Value: 5},
		Inequality[int]{Value: 5},
		LessThan[int]{Value: 5},
		LessThan[int]{Value: 5, Inclusive: true},
		MoreThan[int]{Value: 5},
		MoreThan[int]{Value: 5, Inclusive: true},
	}

	s.Run("inversion is an involution", func() {
		for _, r := range rules {
			twice := r.Inverted().Inverted()
			for _, v := range ruleSamples {
				s.Equalf(r.Apply(v), twice.Apply(v), "rule %s at %d", r, v)
			}
		}
	})

	s.Run("inverted is the complement", func() {
		for _, r := range rules {
			inverted := r.Inverted()
			for _, v := range ruleSamples {
				s.NotEqualf(r.Apply(v), inverted.Apply(v), "rule %s at %d", r, v)
			}
		}
	})

	s.Run("and and or invert via De Morgan", func() {
		between := And[int]{
			First:  MoreThan[int]{Value: 3, Inclusive: true},
			Second: LessThan[int]{Value: 7},
		}
		inverted := between.Inverted()
		s.IsType(Or[int]{}, inverted)
		for _, v := range ruleSamples {
			s.Equal(!between.Apply(v), inverted.Apply(v))
		}

		outside := Or[int]{
			First:  LessThan[int]{Value: 3},
			Second: MoreThan[int]{Value: 7},
		}
		s.IsType(And[int]{}, outside.Inverted())
		for _, v := range ruleSamples {
			s.Equal(!outside.Apply(v), outside.Inverted().Apply(v))
		}
	})
}

// =============================================================================
// Contradiction Tests
// =============================================================================

func (s *ValueRuleSuite) TestContradicts() {
	s.Run("nil never contradicts", func() {
		s.False(Equality[int]{Value: 5}.Contradicts(nil))
		s.False(And[int]{First: Equality[int]{Value: 1}, Second: Equality[int]{Value: 2}}.Contradicts(nil))
	})

	s.Run("distinct equalities contradict", func() {
		s.True(Equality[int]{Value: 5}.Contradicts(Equality[int]{Value: 6}))
		s.False(Equality[int]{Value: 5}.Contradicts(Equality[int]{Value: 5}))
	})

	s.Run("inequality verdict mirrors its own Apply", func() {
		s.True(Inequality[int]{Value: 5}.Contradicts(Equality[int]{Value: 6}))
		s.False(Inequality[int]{Value: 5}.Contradicts(Equality[int]{Value: 5}))
	})

	s.Run("disjoint ranges contradict", func() {
		s.True(LessThan[int]{Value: 5}.Contradicts(MoreThan[int]{Value: 7}))
		s.True(MoreThan[int]{Value: 7}.Contradicts(LessThan[int]{Value: 5}))
		s.False(LessThan[int]{Value: 7}.Contradicts(MoreThan[int]{Value: 5}))
	})

	s.Run("boundary verdict ignores the other side's inclusivity", func() {
		// <=5 asked about >5: 5 satisfies <=5, so no contradiction reported.
		s.False(LessThan[int]{Value: 5, Inclusive: true}.Contradicts(MoreThan[int]{Value: 5}))
		// >5 asked about <=5: 5 does not satisfy >5, so a contradiction is.
		s.True(MoreThan[int]{Value: 5}.Contradicts(LessThan[int]{Value: 5, Inclusive: true}))
		// Both inclusive share the boundary point.
		s.False(LessThan[int]{Value: 5, Inclusive: true}.Contradicts(MoreThan[int]{Value: 5, Inclusive: true}))
	})

	s.Run("conjunction contradicts when either half does", func() {
		between := And[int]{
			First:  MoreThan[int]{Value: 3, Inclusive: true},
			Second: LessThan[int]{Value: 7},
		}
		s.True(between.Contradicts(Equality[int]{Value: 100}))
		s.False(between.Contradicts(Equality[int]{Value: 5}))
	})

	s.Run("disjunction contradicts only when both halves do", func() {
		outside := Or[int]{
			First:  LessThan[int]{Value: 3},
			Second: MoreThan[int]{Value: 7},
		}
		s.True(outside.Contradicts(Equality[int]{Value: 5}))
		s.False(outside.Contradicts(Equality[int]{Value: 0}))
	})
}

// =============================================================================
// Parse Tests
// =============================================================================

func (s *ValueRuleSuite) TestParseRules() {
	s.Run("single operand yields the bare rule", func() {
		r, err := ParseRules[int](json.RawMessage(`[{"operator": "equalTo", "value": 5}]`))
		s.Require().NoError(err)
		s.Equal(Equality[int]{Value: 5}, r)
	})

	s.Run("two operands combine as a conjunction", func() {
		r, err := ParseRules[int](json.RawMessage(
			`[{"operator": "greaterThanOrEqualTo", "value": 3}, {"operator": "lessThan", "value": 7}]`))
		s.Require().NoError(err)
		s.Equal(And[int]{
			First:  MoreThan[int]{Value: 3, Inclusive: true},
			Second: LessThan[int]{Value: 7},
		}, r)
	})

	s.Run("operator matching is case-insensitive", func() {
		r, err := ParseRules[float64](json.RawMessage(`[{"operator": "LESSTHANOREQUALTO", "value": 2.5}]`))
		s.Require().NoError(err)
		s.Equal(LessThan[float64]{Value: 2.5, Inclusive: true}, r)
	})

	s.Run("unknown operator fails", func() {
		_, err := ParseRules[int](json.RawMessage(`[{"operator": "between", "value": 5}]`))
		s.Error(err)
		s.Contains(err.Error(), "unknown value rule operator")
	})

	s.Run("wrong operand count fails", func() {
		_, err := ParseRules[int](json.RawMessage(`[]`))
		s.Error(err)

		_, err = ParseRules[int](json.RawMessage(
			`[{"operator": "equalTo", "value": 1}, {"operator": "equalTo", "value": 2}, {"operator": "equalTo", "value": 3}]`))
		s.Error(err)
		s.Contains(err.Error(), "1 or 2 operands")
	})
}
