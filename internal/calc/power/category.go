package power

import (
	"encoding/json"
	"strings"
)

// LoadCategory is the kind of load the stabilizer or transformer feeds.
// The zero value is not a valid category.
type LoadCategory int

const (
	LoadUnknown LoadCategory = iota
	LoadMotor
	LoadHeater
	LoadMixed
)

func (c LoadCategory) String() string {
	switch c {
	case LoadMotor:
		return "motor"
	case LoadHeater:
		return "heater"
	case LoadMixed:
		return "mixed"
	}
	return "unknown"
}

func (c LoadCategory) Valid() bool {
	switch c {
	case LoadMotor, LoadHeater, LoadMixed:
		return true
	}
	return false
}

// ParseLoadCategory accepts the wire names, case-insensitively.
func ParseLoadCategory(s string) (LoadCategory, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "motor":
		return LoadMotor, true
	case "heater":
		return LoadHeater, true
	case "mixed":
		return LoadMixed, true
	}
	return LoadUnknown, false
}

func (c LoadCategory) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON never fails on an unknown name: it leaves LoadUnknown so the
// calculator can report a field error instead of a decode error.
func (c *LoadCategory) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*c = LoadUnknown
		return nil
	}
	*c, _ = ParseLoadCategory(s)
	return nil
}
