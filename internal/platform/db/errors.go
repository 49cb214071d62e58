package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/healthgraph/radar/pkg/apperr"
)

// PostgreSQL error codes the repositories translate.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
	codeStringTooLong       = "22001"
)

// TranslateError classifies a pgx error. entity names the row kind in client
// messages ("patient", "issue"). Already-classified errors pass through.
func TranslateError(err error, entity string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(apperr.KindNotFound, err, entity+" not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return apperr.Wrap(apperr.KindConflict, err, entity+" already exists")
		case codeForeignKeyViolation:
			return apperr.Wrap(apperr.KindNotFound, err, "referenced record not found")
		case codeCheckViolation, codeNotNullViolation:
			return apperr.Wrap(apperr.KindValidation, err, "invalid "+entity+" data")
		case codeStringTooLong:
			return apperr.Wrap(apperr.KindValidation, err, entity+" field exceeds its maximum length")
		}
	}
	return apperr.Internal(err, "database error")
}
