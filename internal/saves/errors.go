package saves

import "fmt"

// StorageUnavailableError is the only expected failure mode of Save: no
// persistent store is reachable.
type StorageUnavailableError struct {
	Cause error
}

func (e *StorageUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("save storage unavailable: %v", e.Cause)
	}
	return "save storage unavailable"
}

func (e *StorageUnavailableError) Unwrap() error {
	return e.Cause
}

// InvalidFormatError indicates an import payload whose top-level structure
// is not a JSON array of save records. Per-record defects are skipped, not
// raised.
type InvalidFormatError struct {
	Reason string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid save export format: %s", e.Reason)
}
