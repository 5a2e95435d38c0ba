package repository

import (
	"context"
	"database/sql/driver"
	"net"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stanstork/notifications-api/internal/apperror"
)

const (
	uniqueViolation     = pq.ErrorCode("23505")
	foreignKeyViolation = pq.ErrorCode("23503")
)

// classify maps driver failures onto the apperror taxonomy. Anything it does
// not recognise is wrapped with op and left as an internal error.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if apperror.KindOf(err) != apperror.KindUnknown {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == uniqueViolation:
			return apperror.Conflict(err, "%s: %s already exists", op, pqErr.Constraint)
		case pqErr.Code == foreignKeyViolation:
			return apperror.NotFound("%s: referenced row does not exist", op)
		// connection_exception and operator_intervention (shutdown, cannot connect now)
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "57":
			return apperror.Unavailable(err, "%s", op)
		}
	}
	if errors.Is(err, driver.ErrBadConn) {
		return apperror.Unavailable(err, "%s", op)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperror.Unavailable(err, "%s", op)
	}
	return errors.Wrap(err, op)
}
