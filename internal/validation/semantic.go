package validation

import (
	"encoding/json"
	"fmt"

	"dtro/internal/dtro/models"
	"dtro/internal/rules"
	"dtro/internal/spatial"
	"dtro/pkg/jsontree"
)

// SemanticError is a message/path pair describing one semantic validation
// failure.
type SemanticError struct {
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// SemanticValidator runs the checks that JSON schema cannot express:
// contradiction scanning over embedded rule conditions and coordinate range
// checks against each geometry's declared CRS.
type SemanticValidator struct{}

// NewSemanticValidator returns a semantic validator.
func NewSemanticValidator() *SemanticValidator {
	return &SemanticValidator{}
}

// ValidateCreation inspects the payload and collects all semantic errors. The
// error return is reserved for internal failures (malformed condition trees);
// user-facing findings come back in the slice.
func (v *SemanticValidator) ValidateCreation(record *models.Record) ([]SemanticError, error) {
	var errors []SemanticError

	conditionErrors, err := v.validateConditions(record.Data)
	if err != nil {
		return nil, err
	}
	errors = append(errors, conditionErrors...)

	errors = append(errors, v.validateCoordinates(record.Data)...)

	return errors, nil
}

func (v *SemanticValidator) validateConditions(data map[string]any) ([]SemanticError, error) {
	var errors []SemanticError

	for pi, provision := range jsontree.Objects(data, "source.provision") {
		for ri, regulation := range jsontree.Objects(provision, "regulations") {
			conditions := jsontree.List(regulation, "conditions")
			if len(conditions) == 0 {
				continue
			}
			path := fmt.Sprintf("source.provision[%d].regulations[%d].conditions", pi, ri)

			set, semanticErr, err := decodeRegulationConditions(conditions)
			if err != nil {
				return nil, err
			}
			if semanticErr != nil {
				semanticErr.Path = path
				errors = append(errors, *semanticErr)
				continue
			}

			contradictory, err := rules.Contradictory(set)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			if contradictory {
				errors = append(errors, SemanticError{
					Message: "The expression is always false.",
					Path:    path,
				})
			}
		}
	}
	return errors, nil
}

// decodeRegulationConditions wraps a regulation's conditions array in an
// implicit conjunction. Unparseable conditions are a user error, not an
// internal one.
func decodeRegulationConditions(conditions []any) (rules.ConditionSet, *SemanticError, error) {
	set := rules.ConditionSet{Operator: rules.OperatorAnd}

	for _, condition := range conditions {
		raw, err := json.Marshal(condition)
		if err != nil {
			return rules.ConditionSet{}, nil, err
		}
		decoded, err := rules.DecodeCondition(raw)
		if err != nil {
			return rules.ConditionSet{}, &SemanticError{Message: err.Error()}, nil
		}
		set.Conditions = append(set.Conditions, decoded)
	}
	return set, nil, nil
}

func (v *SemanticValidator) validateCoordinates(data map[string]any) []SemanticError {
	var errors []SemanticError

	for pi, provision := range jsontree.Objects(data, "source.provision") {
		for gi, place := range jsontree.Objects(provision, "regulatedPlaces") {
			geometry := jsontree.Object(place, "geometry")
			if geometry == nil {
				continue
			}
			path := fmt.Sprintf("source.provision[%d].regulatedPlaces[%d].geometry", pi, gi)

			crs := jsontree.String(geometry, "crs")
			bounds, ok := spatial.BoundsFor(crs)
			if !ok {
				errors = append(errors, SemanticError{
					Message: fmt.Sprintf("Coordinate reference system %q is not supported.", crs),
					Path:    path + ".crs",
				})
				continue
			}

			for _, point := range geometryPoints(jsontree.Object(geometry, "coordinates")) {
				ok, axisErrors := bounds.ContainsVerbose(point.Longitude, point.Latitude)
				if ok {
					continue
				}
				if axisErrors.Longitude != "" {
					errors = append(errors, SemanticError{Message: axisErrors.Longitude, Path: path + ".coordinates"})
				}
				if axisErrors.Latitude != "" {
					errors = append(errors, SemanticError{Message: axisErrors.Latitude, Path: path + ".coordinates"})
				}
			}
		}
	}
	return errors
}

// geometryPoints flattens a geometry object to bare points, tolerating
// unknown types: geometry type support is enforced by index inference, not
// here.
func geometryPoints(geometry map[string]any) []spatial.Coordinates {
	coords := jsontree.List(geometry, "coordinates")

	switch jsontree.String(geometry, "type") {
	case "Point":
		if point, ok := pairToPoint(coords); ok {
			return []spatial.Coordinates{point}
		}
	case "LineString":
		return pairsToPoints(coords)
	case "Polygon":
		var points []spatial.Coordinates
		for _, ring := range coords {
			if pairs, ok := ring.([]any); ok {
				points = append(points, pairsToPoints(pairs)...)
			}
		}
		return points
	}
	return nil
}

func pairsToPoints(pairs []any) []spatial.Coordinates {
	var points []spatial.Coordinates
	for _, pair := range pairs {
		if values, ok := pair.([]any); ok {
			if point, ok := pairToPoint(values); ok {
				points = append(points, point)
			}
		}
	}
	return points
}

func pairToPoint(values []any) (spatial.Coordinates, bool) {
	if len(values) < 2 {
		return spatial.Coordinates{}, false
	}
	lon, lonOK := values[0].(float64)
	lat, latOK := values[1].(float64)
	if !lonOK || !latOK {
		return spatial.Coordinates{}, false
	}
	return spatial.Coordinates{Longitude: lon, Latitude: lat}, true
}
