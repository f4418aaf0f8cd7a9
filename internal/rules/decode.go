package rules

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCondition reports a condition object matching no known variant.
var ErrUnknownCondition = errors.New("unknown condition type")

// DecodeCondition dispatches a JSON condition object to its variant by
// presence of discriminating keys, checked in a fixed order. "conditions"
// wins over everything, and the bare "type" key (permits) is checked late so
// it cannot shadow more specific variants.
func DecodeCondition(raw json.RawMessage) (Condition, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("condition must be an object: %w", err)
	}
	has := func(key string) bool {
		_, ok := obj[key]
		return ok
	}

	switch {
	case has("conditions"):
		return decodeConditionSet(obj)
	case has("roadType"):
		return RoadCondition{
			Negate:   decodeNegate(obj),
			RoadType: decodeString(obj, "roadType"),
		}, nil
	case has("numbersOfOccupants"), has("disabledWithPermit"):
		return decodeOccupantCondition(obj)
	case has("driverCharacteristicsType"), has("licenseCharacteristics"),
		has("ageOfDriver"), has("timeDriversLicenseHeld"):
		return decodeDriverCondition(obj)
	case has("accessConditionType"), has("otherAccessRestriction"):
		return AccessCondition{
			Negate:                 decodeNegate(obj),
			AccessType:             decodeString(obj, "accessConditionType"),
			OtherAccessRestriction: decodeString(obj, "otherAccessRestriction"),
		}, nil
	case has("type"):
		return PermitCondition{
			Negate: decodeNegate(obj),
			Type:   decodeString(obj, "type"),
		}, nil
	case has("vehicleCharacteristics"):
		return decodeVehicleCondition(obj)
	default:
		return nil, ErrUnknownCondition
	}
}

// DecodeConditionSet decodes a top-level condition set. The root of a
// regulation's rule tree must be a set, not a bare leaf.
func DecodeConditionSet(raw json.RawMessage) (ConditionSet, error) {
	condition, err := DecodeCondition(raw)
	if err != nil {
		return ConditionSet{}, err
	}
	set, ok := condition.(ConditionSet)
	if !ok {
		return ConditionSet{}, errors.New("top-level condition must be a condition set")
	}
	return set, nil
}

func decodeConditionSet(obj map[string]json.RawMessage) (Condition, error) {
	op, err := decodeOperator(obj)
	if err != nil {
		return nil, err
	}

	var rawChildren []json.RawMessage
	if err := json.Unmarshal(obj["conditions"], &rawChildren); err != nil {
		return nil, fmt.Errorf("decode child conditions: %w", err)
	}
	children := make([]Condition, 0, len(rawChildren))
	for _, rawChild := range rawChildren {
		child, err := DecodeCondition(rawChild)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	return ConditionSet{
		Operator:   op,
		Negate:     decodeNegate(obj),
		Conditions: children,
	}, nil
}

func decodeOperator(obj map[string]json.RawMessage) (Operator, error) {
	name := decodeString(obj, "operator")
	switch strings.ToLower(name) {
	case "and":
		return OperatorAnd, nil
	case "or":
		return OperatorOr, nil
	case "xor":
		return OperatorXOr, nil
	default:
		return "", fmt.Errorf("unknown condition set operator %q", name)
	}
}

func decodeOccupantCondition(obj map[string]json.RawMessage) (Condition, error) {
	occupants, err := decodeRuleField[int](obj, "numbersOfOccupants")
	if err != nil {
		return nil, err
	}
	condition := OccupantCondition{
		Negate:             decodeNegate(obj),
		NumbersOfOccupants: occupants,
	}
	if raw, ok := obj["disabledWithPermit"]; ok {
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("disabledWithPermit: %w", err)
		}
		condition.DisabledWithPermit = &v
	}
	return condition, nil
}

func decodeDriverCondition(obj map[string]json.RawMessage) (Condition, error) {
	age, err := decodeRuleField[int](obj, "ageOfDriver")
	if err != nil {
		return nil, err
	}
	licenseHeld, err := decodeRuleField[int](obj, "timeDriversLicenseHeld")
	if err != nil {
		return nil, err
	}
	return DriverCondition{
		Negate:                 decodeNegate(obj),
		CharacteristicsType:    decodeString(obj, "driverCharacteristicsType"),
		LicenseCharacteristics: decodeString(obj, "licenseCharacteristics"),
		AgeOfDriver:            age,
		TimeDriversLicenseHeld: licenseHeld,
	}, nil
}

func decodeVehicleCondition(obj map[string]json.RawMessage) (Condition, error) {
	var characteristics map[string]json.RawMessage
	if err := json.Unmarshal(obj["vehicleCharacteristics"], &characteristics); err != nil {
		return nil, fmt.Errorf("vehicleCharacteristics: %w", err)
	}

	grossWeight, err := decodeRuleField[float64](characteristics, "grossWeightCharacteristic")
	if err != nil {
		return nil, err
	}
	height, err := decodeRuleField[float64](characteristics, "heightCharacteristic")
	if err != nil {
		return nil, err
	}
	length, err := decodeRuleField[float64](characteristics, "lengthCharacteristic")
	if err != nil {
		return nil, err
	}
	width, err := decodeRuleField[float64](characteristics, "widthCharacteristic")
	if err != nil {
		return nil, err
	}

	return VehicleCondition{
		Negate: decodeNegate(obj),
		Characteristics: VehicleCharacteristics{
			VehicleType:  decodeString(characteristics, "vehicleType"),
			VehicleUsage: decodeString(characteristics, "vehicleUsage"),
			GrossWeight:  grossWeight,
			Height:       height,
			Length:       length,
			Width:        width,
		},
	}, nil
}

func decodeNegate(obj map[string]json.RawMessage) bool {
	raw, ok := obj["negate"]
	if !ok {
		return false
	}
	var negate bool
	_ = json.Unmarshal(raw, &negate)
	return negate
}

func decodeString(obj map[string]json.RawMessage, key string) string {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	var s string
	_ = json.Unmarshal(raw, &s)
	return s
}

func decodeRuleField[T cmp.Ordered](obj map[string]json.RawMessage, key string) (Rule[T], error) {
	raw, ok := obj[key]
	if !ok {
		return nil, nil
	}
	rule, err := ParseRules[T](raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return rule, nil
}
