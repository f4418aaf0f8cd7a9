package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SchemaVersion is the dotted-triple version of the data schema a document
// was submitted against, e.g. "3.1.2".
type SchemaVersion struct {
	Major int
	Minor int
	Patch int
}

// ParseSchemaVersion parses a "major.minor.patch" string. All three segments
// are required and must be non-negative integers.
func ParseSchemaVersion(s string) (SchemaVersion, error) {
	segments := strings.Split(s, ".")
	if len(segments) != 3 {
		return SchemaVersion{}, fmt.Errorf("schema version %q must have exactly three segments", s)
	}

	parts := make([]int, 3)
	for i, segment := range segments {
		n, err := strconv.Atoi(segment)
		if err != nil || n < 0 {
			return SchemaVersion{}, fmt.Errorf("schema version %q has an invalid segment %q", s, segment)
		}
		parts[i] = n
	}
	return SchemaVersion{Major: parts[0], Minor: parts[1], Patch: parts[2]}, nil
}

func (v SchemaVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare orders versions numerically segment by segment.
func (v SchemaVersion) Compare(other SchemaVersion) int {
	if v.Major != other.Major {
		return v.Major - other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor - other.Minor
	}
	return v.Patch - other.Patch
}

// AtLeast reports whether v >= other.
func (v SchemaVersion) AtLeast(other SchemaVersion) bool {
	return v.Compare(other) >= 0
}

func (v SchemaVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *SchemaVersion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSchemaVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
