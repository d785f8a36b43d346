package zone

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a zone or special room ID is not registered.
var ErrNotFound = errors.New("not found")

// SchemaError describes one invalid template or special-room definition.
type SchemaError struct {
	// Zone is the offending zone ID, empty when the error concerns a special room definition.
	Zone string
	// Special is the offending special room ID, if any.
	Special string
	// Field names the definition field at fault.
	Field  string
	Reason string
}

// Error implements error.
func (e *SchemaError) Error() string {
	switch {
	case e.Zone != "" && e.Special != "":
		return fmt.Sprintf("zone %q: special %q: %s: %s", e.Zone, e.Special, e.Field, e.Reason)
	case e.Zone != "":
		return fmt.Sprintf("zone %q: %s: %s", e.Zone, e.Field, e.Reason)
	case e.Special == "":
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	default:
		return fmt.Sprintf("special room %q: %s: %s", e.Special, e.Field, e.Reason)
	}
}
