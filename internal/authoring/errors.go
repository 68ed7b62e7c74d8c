package authoring

import "fmt"

// InvalidFormatError indicates an external payload (story file, legacy
// export) is not parseable as any supported shape.
type InvalidFormatError struct {
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid story format: %s", e.Reason)
}
