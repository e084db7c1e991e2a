package recordstore

import "fmt"

// InvalidateError is returned by Invalidate only when both the generation bump
// and the provider delete failed. If either succeeded the record can no longer
// be served and Invalidate returns nil.
type InvalidateError struct {
	Key     string
	BumpErr error
	DelErr  error
}

func (e *InvalidateError) Error() string {
	return fmt.Sprintf("recordstore: invalidate %q: bump=%v; delete=%v", e.Key, e.BumpErr, e.DelErr)
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}
