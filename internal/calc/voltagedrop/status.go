package voltagedrop

import (
	"encoding/json"
	"fmt"
)

type SafetyStatus int

const (
	StatusSafe SafetyStatus = iota + 1
	StatusDangerous
)

func (s SafetyStatus) String() string {
	switch s {
	case StatusSafe:
		return "safe"
	case StatusDangerous:
		return "dangerous"
	}
	return "unknown"
}

func (s SafetyStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SafetyStatus) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v {
	case "safe":
		*s = StatusSafe
	case "dangerous":
		*s = StatusDangerous
	default:
		return fmt.Errorf("unknown safety status %q", v)
	}
	return nil
}
