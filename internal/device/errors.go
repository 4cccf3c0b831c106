package device

import "fmt"

// SchemaError reports a payload or value that violates the structure the
// model expects. It is returned instead of silently defaulting.
type SchemaError struct {
	Field string
	Value string
	Err   error
}

func (e *SchemaError) Error() string {
	switch {
	case e.Err != nil && e.Field != "":
		return fmt.Sprintf("schema error at %s: %v", e.Field, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("schema error: %v", e.Err)
	default:
		return fmt.Sprintf("schema error: unexpected value %q for %s", e.Value, e.Field)
	}
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}
