package domain

import "fmt"

// ConfigError marks a target whose configuration cannot be probed at all.
// It is surfaced to the caller instead of being turned into an offline result.
type ConfigError struct {
	TargetID TargetID
	Field    string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.TargetID == "" {
		return fmt.Sprintf("target config: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("target %s config: %s %s", e.TargetID, e.Field, e.Reason)
}
