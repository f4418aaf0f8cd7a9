package rules

import "cmp"

// Operator combines the children of a condition set.
type Operator string

const (
	OperatorAnd Operator = "and"
	OperatorOr  Operator = "or"
	OperatorXOr Operator = "xOr"
)

// Condition is a node in a regulation's rule tree. The variant set is closed:
// ConditionSet combines children under an operator, every other variant is a
// leaf constraining one attribute group. Leaves over different attribute
// groups never contradict each other.
type Condition interface {
	// Negated returns the condition with its negation flag flipped.
	Negated() Condition
	// Contradicts reports whether the two conditions cannot hold at once.
	Contradicts(other Condition) bool

	isCondition()
}

// ConditionSet combines an ordered list of child conditions under a Boolean
// operator, optionally negated as a whole.
type ConditionSet struct {
	Operator   Operator
	Negate     bool
	Conditions []Condition
}

func (c ConditionSet) Negated() Condition {
	c.Negate = !c.Negate
	return c
}

// Contradicts on a set is always false: the contradiction scan only runs over
// leaves, after DNF flattening has dissolved all sets.
func (c ConditionSet) Contradicts(Condition) bool { return false }

func (c ConditionSet) isCondition() {}

// RoadCondition constrains the type of road the regulation applies on.
type RoadCondition struct {
	Negate   bool
	RoadType string
}

func (c RoadCondition) Negated() Condition {
	c.Negate = !c.Negate
	return c
}

func (c RoadCondition) Contradicts(other Condition) bool {
	o, ok := other.(RoadCondition)
	if !ok {
		return false
	}
	return stringsContradict(c.RoadType, c.Negate, o.RoadType, o.Negate)
}

func (c RoadCondition) isCondition() {}

// OccupantCondition constrains vehicle occupancy.
type OccupantCondition struct {
	Negate             bool
	NumbersOfOccupants Rule[int]
	DisabledWithPermit *bool
}

func (c OccupantCondition) Negated() Condition {
	c.Negate = !c.Negate
	return c
}

func (c OccupantCondition) Contradicts(other Condition) bool {
	o, ok := other.(OccupantCondition)
	if !ok {
		return false
	}
	if rulesContradict(c.NumbersOfOccupants, c.Negate, o.NumbersOfOccupants, o.Negate) {
		return true
	}
	return boolsContradict(c.DisabledWithPermit, c.Negate, o.DisabledWithPermit, o.Negate)
}

func (c OccupantCondition) isCondition() {}

// DriverCondition constrains driver characteristics.
type DriverCondition struct {
	Negate                 bool
	CharacteristicsType    string
	LicenseCharacteristics string
	AgeOfDriver            Rule[int]
	TimeDriversLicenseHeld Rule[int]
}

func (c DriverCondition) Negated() Condition {
	c.Negate = !c.Negate
	return c
}

func (c DriverCondition) Contradicts(other Condition) bool {
	o, ok := other.(DriverCondition)
	if !ok {
		return false
	}
	return stringsContradict(c.CharacteristicsType, c.Negate, o.CharacteristicsType, o.Negate) ||
		stringsContradict(c.LicenseCharacteristics, c.Negate, o.LicenseCharacteristics, o.Negate) ||
		rulesContradict(c.AgeOfDriver, c.Negate, o.AgeOfDriver, o.Negate) ||
		rulesContradict(c.TimeDriversLicenseHeld, c.Negate, o.TimeDriversLicenseHeld, o.Negate)
}

func (c DriverCondition) isCondition() {}

// AccessCondition constrains who may access the regulated location.
type AccessCondition struct {
	Negate                 bool
	AccessType             string
	OtherAccessRestriction string
}

func (c AccessCondition) Negated() Condition {
	c.Negate = !c.Negate
	return c
}

func (c AccessCondition) Contradicts(other Condition) bool {
	o, ok := other.(AccessCondition)
	if !ok {
		return false
	}
	return stringsContradict(c.AccessType, c.Negate, o.AccessType, o.Negate) ||
		stringsContradict(c.OtherAccessRestriction, c.Negate, o.OtherAccessRestriction, o.Negate)
}

func (c AccessCondition) isCondition() {}

// PermitCondition constrains the permit type a vehicle must hold.
type PermitCondition struct {
	Negate bool
	Type   string
}

func (c PermitCondition) Negated() Condition {
	c.Negate = !c.Negate
	return c
}

func (c PermitCondition) Contradicts(other Condition) bool {
	o, ok := other.(PermitCondition)
	if !ok {
		return false
	}
	return stringsContradict(c.Type, c.Negate, o.Type, o.Negate)
}

func (c PermitCondition) isCondition() {}

// VehicleCharacteristics holds the measurable attributes of a vehicle that a
// VehicleCondition can constrain.
type VehicleCharacteristics struct {
	VehicleType  string
	VehicleUsage string
	GrossWeight  Rule[float64]
	Height       Rule[float64]
	Length       Rule[float64]
	Width        Rule[float64]
}

// VehicleCondition constrains vehicle characteristics.
type VehicleCondition struct {
	Negate          bool
	Characteristics VehicleCharacteristics
}

func (c VehicleCondition) Negated() Condition {
	c.Negate = !c.Negate
	return c
}

func (c VehicleCondition) Contradicts(other Condition) bool {
	o, ok := other.(VehicleCondition)
	if !ok {
		return false
	}
	cc, oc := c.Characteristics, o.Characteristics
	return stringsContradict(cc.VehicleType, c.Negate, oc.VehicleType, o.Negate) ||
		stringsContradict(cc.VehicleUsage, c.Negate, oc.VehicleUsage, o.Negate) ||
		rulesContradict(cc.GrossWeight, c.Negate, oc.GrossWeight, o.Negate) ||
		rulesContradict(cc.Height, c.Negate, oc.Height, o.Negate) ||
		rulesContradict(cc.Length, c.Negate, oc.Length, o.Negate) ||
		rulesContradict(cc.Width, c.Negate, oc.Width, o.Negate)
}

func (c VehicleCondition) isCondition() {}

// effective applies a leaf's negation flag to one of its value rules.
func effective[T cmp.Ordered](r Rule[T], negated bool) Rule[T] {
	if negated {
		return r.Inverted()
	}
	return r
}

// rulesContradict delegates into the rule engine, asking both sides since the
// engine's boundary verdicts depend on direction.
func rulesContradict[T cmp.Ordered](a Rule[T], aNeg bool, b Rule[T], bNeg bool) bool {
	if a == nil || b == nil {
		return false
	}
	ea, eb := effective(a, aNeg), effective(b, bNeg)
	return ea.Contradicts(eb) || eb.Contradicts(ea)
}

// stringsContradict compares enumerated single-valued attributes: two
// requirements contradict, a requirement and its exclusion contradict, two
// exclusions always leave room. Unset attributes (empty string) never
// contradict.
func stringsContradict(a string, aNeg bool, b string, bNeg bool) bool {
	if a == "" || b == "" {
		return false
	}
	if aNeg != bNeg {
		return a == b
	}
	if aNeg {
		return false
	}
	return a != b
}

func boolsContradict(a *bool, aNeg bool, b *bool, bNeg bool) bool {
	if a == nil || b == nil {
		return false
	}
	return (*a != aNeg) != (*b != bNeg)
}
