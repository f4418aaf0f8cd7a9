package rules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"
)

// =============================================================================
// Condition Model Test Suite
// =============================================================================

type ConditionSuite struct {
	suite.Suite
}

func TestConditionSuite(t *testing.T) {
	suite.Run(t, new(ConditionSuite))
}

// =============================================================================
// Decode Dispatch Tests
// =============================================================================

func (s *ConditionSuite) TestDecodeCondition() {
	s.Run("conditions key yields a condition set", func() {
		c, err := DecodeCondition(json.RawMessage(`{
			"operator": "and",
			"conditions": [
				{"roadType": "motorway"},
				{"negate": true, "type": "doctor"}
			]
		}`))
		s.Require().NoError(err)

		set, ok := c.(ConditionSet)
		s.Require().True(ok)
		s.Equal(OperatorAnd, set.Operator)
		s.Require().Len(set.Conditions, 2)
		s.Equal(RoadCondition{RoadType: "motorway"}, set.Conditions[0])
		s.Equal(PermitCondition{Negate: true, Type: "doctor"}, set.Conditions[1])
	})

	s.Run("operator is case-insensitive", func() {
		c, err := DecodeCondition(json.RawMessage(`{"operator": "XOr", "conditions": []}`))
		s.Require().NoError(err)
		s.Equal(OperatorXOr, c.(ConditionSet).Operator)
	})

	s.Run("unknown operator fails", func() {
		_, err := DecodeCondition(json.RawMessage(`{"operator": "nand", "conditions": []}`))
		s.Error(err)
		s.Contains(err.Error(), "unknown condition set operator")
	})

	s.Run("occupant keys yield an occupant condition", func() {
		c, err := DecodeCondition(json.RawMessage(`{
			"disabledWithPermit": true,
			"numbersOfOccupants": [{"operator": "greaterThanOrEqualTo", "value": 2}]
		}`))
		s.Require().NoError(err)

		occupant, ok := c.(OccupantCondition)
		s.Require().True(ok)
		s.Require().NotNil(occupant.DisabledWithPermit)
		s.True(*occupant.DisabledWithPermit)
		s.Equal(MoreThan[int]{Value: 2, Inclusive: true}, occupant.NumbersOfOccupants)
	})

	s.Run("driver keys yield a driver condition", func() {
		c, err := DecodeCondition(json.RawMessage(`{
			"negate": true,
			"ageOfDriver": [{"operator": "lessThan", "value": 21}]
		}`))
		s.Require().NoError(err)
		s.Equal(DriverCondition{Negate: true, AgeOfDriver: LessThan[int]{Value: 21}}, c)
	})

	s.Run("access keys yield an access condition", func() {
		c, err := DecodeCondition(json.RawMessage(`{"accessConditionType": "loadingAndUnloading"}`))
		s.Require().NoError(err)
		s.Equal(AccessCondition{AccessType: "loadingAndUnloading"}, c)
	})

	s.Run("vehicle characteristics parse nested value rules", func() {
		c, err := DecodeCondition(json.RawMessage(`{
			"vehicleCharacteristics": {
				"vehicleType": "bus",
				"heightCharacteristic": [{"operator": "lessThanOrEqualTo", "value": 2.5}]
			}
		}`))
		s.Require().NoError(err)

		vehicle, ok := c.(VehicleCondition)
		s.Require().True(ok)
		s.Equal("bus", vehicle.Characteristics.VehicleType)
		s.Equal(LessThan[float64]{Value: 2.5, Inclusive: true}, vehicle.Characteristics.Height)
	})

	s.Run("no discriminating key fails", func() {
		_, err := DecodeCondition(json.RawMessage(`{"colour": "red"}`))
		s.ErrorIs(err, ErrUnknownCondition)
	})

	s.Run("bad nested value rule propagates", func() {
		_, err := DecodeCondition(json.RawMessage(`{
			"numbersOfOccupants": [{"operator": "approximately", "value": 2}]
		}`))
		s.Error(err)
		s.Contains(err.Error(), "numbersOfOccupants")
	})
}

func (s *ConditionSuite) TestDecodeConditionSet() {
	s.Run("bare leaf at top level fails", func() {
		_, err := DecodeConditionSet(json.RawMessage(`{"roadType": "motorway"}`))
		s.Error(err)
	})

	s.Run("nested sets decode recursively", func() {
		set, err := DecodeConditionSet(json.RawMessage(`{
			"operator": "or",
			"conditions": [
				{"operator": "and", "negate": true, "conditions": [{"roadType": "motorway"}]}
			]
		}`))
		s.Require().NoError(err)
		s.Require().Len(set.Conditions, 1)
		inner := set.Conditions[0].(ConditionSet)
		s.True(inner.Negate)
	})
}

// =============================================================================
// Leaf Contradiction Tests
// =============================================================================

func (s *ConditionSuite) TestLeafContradicts() {
	s.Run("negated flips only the flag", func() {
		c := RoadCondition{RoadType: "motorway"}
		negated := c.Negated().(RoadCondition)
		s.True(negated.Negate)
		s.Equal(c, negated.Negated())
	})

	s.Run("requirement and its exclusion contradict", func() {
		a := PermitCondition{Type: "doctor"}
		s.True(a.Contradicts(PermitCondition{Type: "doctor", Negate: true}))
		s.False(a.Contradicts(PermitCondition{Type: "resident", Negate: true}))
	})

	s.Run("distinct requirements on a single-valued attribute contradict", func() {
		s.True(RoadCondition{RoadType: "motorway"}.Contradicts(RoadCondition{RoadType: "residentialRoad"}))
	})

	s.Run("two exclusions never contradict", func() {
		a := RoadCondition{RoadType: "motorway", Negate: true}
		b := RoadCondition{RoadType: "residentialRoad", Negate: true}
		s.False(a.Contradicts(b))
	})

	s.Run("value rules contradict through the rule engine", func() {
		atLeastFour := OccupantCondition{NumbersOfOccupants: MoreThan[int]{Value: 4, Inclusive: true}}
		atMostTwo := OccupantCondition{NumbersOfOccupants: LessThan[int]{Value: 2, Inclusive: true}}
		s.True(atLeastFour.Contradicts(atMostTwo))

		// A negated copy is its own complement.
		s.True(atLeastFour.Contradicts(atLeastFour.Negated()))
	})

	s.Run("different variants never contradict", func() {
		s.False(RoadCondition{RoadType: "motorway"}.Contradicts(PermitCondition{Type: "motorway"}))
	})

	s.Run("unset attributes never contradict", func() {
		s.False(OccupantCondition{}.Contradicts(OccupantCondition{Negate: true}))
	})
}
