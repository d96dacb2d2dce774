package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/lib/pq"
)

// Postgres error codes we translate in to catalog errors.
// See https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pqUniqueViolation     = pq.ErrorCode("23505")
	pqForeignKeyViolation = pq.ErrorCode("23503")
	pqCheckViolation      = pq.ErrorCode("23514")
	pqNotNullViolation    = pq.ErrorCode("23502")
)

// TranslateError converts storage-engine errors in to the catalog
// error taxonomy so that raw driver errors never escape a store. The
// subject is used to give the resulting error some context (e.g. "user").
// Errors which do not correspond to a known condition are wrapped verbatim.
func TranslateError(subject string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return catalog.NotFoundf("%s does not exist", subject)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return catalog.Conflictf("%s conflicts with an existing row (%s)", subject, pqErr.Constraint)
		case pqForeignKeyViolation:
			return catalog.NotFoundf("%s references a row which does not exist (%s)", subject, pqErr.Constraint)
		case pqCheckViolation, pqNotNullViolation:
			return &catalog.ValidationError{Fields: []catalog.FieldError{{Field: subject, Message: fmt.Sprintf("violates constraint %s", pqErr.Constraint)}}}
		}
	}

	return fmt.Errorf("%s: storage failure: %w", subject, err)
}
