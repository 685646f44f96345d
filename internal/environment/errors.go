package environment

import (
	"errors"
	"fmt"
)

// CreateError is returned by Provisioner.Create when a step fails. Resources
// created before the failure are left in place for Destroy.
type CreateError struct {
	Step string
	Err  error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("environment creation failed at %s: %v", e.Step, e.Err)
}

func (e *CreateError) Unwrap() error {
	return e.Err
}

// DestroyError collects the container stop and remove failures of one
// Provisioner.Destroy call.
type DestroyError struct {
	Errs []error
}

func (e *DestroyError) Error() string {
	return fmt.Sprintf("environment teardown failed: %v", errors.Join(e.Errs...))
}

func (e *DestroyError) Unwrap() []error {
	return e.Errs
}

// IsCreateError checks if an error is a CreateError
func IsCreateError(err error) bool {
	var createErr *CreateError
	return errors.As(err, &createErr)
}
