package catalog

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-console/internal/domain/product"
)

// StatusError is returned when the remote catalog answers with a non-2xx
// status.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: remote catalog returned %d: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: remote catalog returned %d", e.Op, e.Code)
}

// notFound maps a remote 404 onto product.ErrNotFound, leaving every other
// error untouched.
func notFound(err error) error {
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return errors.Wrap(product.ErrNotFound, se.Op)
	}
	return err
}
