package rules

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

// =============================================================================
// DNF Normalizer Test Suite
// =============================================================================

type DnfSuite struct {
	suite.Suite
}

func TestDnfSuite(t *testing.T) {
	suite.Run(t, new(DnfSuite))
}

func roadIs(roadType string) Condition {
	return RoadCondition{RoadType: roadType}
}

func roadIsNot(roadType string) Condition {
	return RoadCondition{RoadType: roadType, Negate: true}
}

func set(op Operator, children ...Condition) ConditionSet {
	return ConditionSet{Operator: op, Conditions: children}
}

// evaluate interprets a condition tree as a predicate over a single road
// type, mirroring how leaf contradiction works for RoadCondition.
func evaluate(c Condition, roadType string) bool {
	switch v := c.(type) {
	case ConditionSet:
		result := v.Operator == OperatorAnd
		for _, child := range v.Conditions {
			switch v.Operator {
			case OperatorAnd:
				result = result && evaluate(child, roadType)
			case OperatorOr:
				result = result || evaluate(child, roadType)
			case OperatorXOr:
				panic("evaluate does not handle XOr directly")
			}
		}
		if v.Negate {
			return !result
		}
		return result
	case RoadCondition:
		return (v.RoadType == roadType) != v.Negate
	default:
		panic("unsupported condition in test")
	}
}

// =============================================================================
// Contradiction Scan Tests
// =============================================================================

func (s *DnfSuite) TestContradictory() {
	s.Run("A and not A is always false", func() {
		contradictory, err := Contradictory(set(OperatorAnd, roadIs("motorway"), roadIsNot("motorway")))
		s.Require().NoError(err)
		s.True(contradictory)
	})

	s.Run("A or not A is satisfiable", func() {
		contradictory, err := Contradictory(set(OperatorOr, roadIs("motorway"), roadIsNot("motorway")))
		s.Require().NoError(err)
		s.False(contradictory)
	})

	s.Run("negated tautology is always false", func() {
		tautology := set(OperatorOr, roadIs("motorway"), roadIsNot("motorway"))
		tautology.Negate = true
		contradictory, err := Contradictory(tautology)
		s.Require().NoError(err)
		s.True(contradictory)
	})

	s.Run("one satisfiable disjunct saves the expression", func() {
		contradictory, err := Contradictory(set(OperatorOr,
			set(OperatorAnd, roadIs("motorway"), roadIsNot("motorway")),
			roadIs("residentialRoad"),
		))
		s.Require().NoError(err)
		s.False(contradictory)
	})

	s.Run("conditions over different attributes never contradict", func() {
		contradictory, err := Contradictory(set(OperatorAnd,
			roadIs("motorway"),
			PermitCondition{Type: "doctor"},
		))
		s.Require().NoError(err)
		s.False(contradictory)
	})

	s.Run("empty set is malformed", func() {
		_, err := Contradictory(set(OperatorAnd))
		s.Error(err)
	})
}

// =============================================================================
// XOR Expansion Tests
// =============================================================================

func (s *DnfSuite) TestExpandXOr() {
	a := roadIs("a")
	b := roadIs("b")

	s.Run("expansion matches the XOR truth table", func() {
		expanded, err := expandXOrSet(set(OperatorXOr, a, b))
		s.Require().NoError(err)

		// Probing with road types: "a" ⇒ A true, B false; "b" ⇒ the reverse;
		// "c" ⇒ both false. Both-true is not expressible with a single road
		// type, so it is covered by the contradiction check below instead.
		s.True(evaluate(expanded, "a"))
		s.True(evaluate(expanded, "b"))
		s.False(evaluate(expanded, "c"))
	})

	s.Run("XOR of a condition with itself is always false", func() {
		contradictory, err := Contradictory(set(OperatorXOr, a, roadIs("a")))
		s.Require().NoError(err)
		s.True(contradictory)
	})

	s.Run("n-ary XOR expands pairwise", func() {
		expanded, err := expandXOrSet(set(OperatorXOr, a, b, roadIs("c")))
		s.Require().NoError(err)

		// Exactly one of A, B, C holds for any single road type.
		s.True(evaluate(expanded, "a"))
		s.True(evaluate(expanded, "b"))
		s.True(evaluate(expanded, "c"))
		s.False(evaluate(expanded, "d"))
	})

	s.Run("fewer than two children is malformed", func() {
		_, err := expandXOrSet(set(OperatorXOr, a))
		s.Error(err)
	})
}

// =============================================================================
// Flattening Tests
// =============================================================================

func (s *DnfSuite) TestNormalize() {
	a := roadIs("a")
	b := roadIs("b")
	c := roadIs("c")

	s.Run("and of ors cross-multiplies", func() {
		dnf, err := Normalize(set(OperatorAnd,
			set(OperatorOr, a, b),
			set(OperatorOr, c, roadIs("d")),
		))
		s.Require().NoError(err)
		s.Len(dnf, 4)
		for _, conjunction := range dnf {
			s.Len(conjunction, 2)
		}
	})

	s.Run("or concatenates disjuncts", func() {
		dnf, err := Normalize(set(OperatorOr, a, set(OperatorAnd, b, c)))
		s.Require().NoError(err)
		s.Require().Len(dnf, 2)
		s.Len(dnf[0], 1)
		s.Len(dnf[1], 2)
	})

	s.Run("negation propagates via De Morgan before flattening", func() {
		negated := set(OperatorAnd, a, b)
		negated.Negate = true
		dnf, err := Normalize(negated)
		s.Require().NoError(err)

		// !(a && b) = !a || !b: two singleton disjuncts with negated leaves.
		s.Require().Len(dnf, 2)
		s.Equal(Conjunction{roadIsNot("a")}, dnf[0])
		s.Equal(Conjunction{roadIsNot("b")}, dnf[1])
	})

	s.Run("unexpanded XOR below the root is rejected", func() {
		_, err := setToDnf(set(OperatorAnd, set(OperatorXOr, a, b)))
		s.Error(err)
		s.Contains(err.Error(), "not expanded")
	})
}
