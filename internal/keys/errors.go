package keys

import "fmt"

// InvalidSecretError is returned when key material cannot be decoded
type InvalidSecretError struct {
	Reason string
	Err    error
}

func (e *InvalidSecretError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid secret: %s: %v", e.Reason, e.Err)
	}
	return "invalid secret: " + e.Reason
}

func (e *InvalidSecretError) Unwrap() error {
	return e.Err
}
