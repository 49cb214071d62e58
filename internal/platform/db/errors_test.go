package db

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/healthgraph/radar/pkg/apperr"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"no rows", pgx.ErrNoRows, apperr.KindNotFound},
		{"wrapped no rows", fmt.Errorf("get patient: %w", pgx.ErrNoRows), apperr.KindNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, apperr.KindConflict},
		{"foreign key", &pgconn.PgError{Code: "23503"}, apperr.KindNotFound},
		{"check", &pgconn.PgError{Code: "23514"}, apperr.KindValidation},
		{"not null", &pgconn.PgError{Code: "23502"}, apperr.KindValidation},
		{"value too long", &pgconn.PgError{Code: "22001"}, apperr.KindValidation},
		{"wrapped value too long", fmt.Errorf("insert issue: %w", &pgconn.PgError{Code: "22001"}), apperr.KindValidation},
		{"other pg error", &pgconn.PgError{Code: "40001"}, apperr.KindInternal},
		{"plain error", errors.New("connection reset"), apperr.KindInternal},
		{"classified", apperr.InvalidState("issue already resolved"), apperr.KindInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TranslateError(tt.err, "patient")
			if apperr.KindOf(got) != tt.want {
				t.Errorf("expected %s, got %s (%v)", tt.want, apperr.KindOf(got), got)
			}
		})
	}
}

func TestTranslateError_StringTooLongStatus(t *testing.T) {
	got := TranslateError(&pgconn.PgError{Code: "22001"}, "issue")
	if status := apperr.StatusFor(apperr.KindOf(got)); status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d (%v)", status, got)
	}
}

func TestTranslateError_Nil(t *testing.T) {
	if TranslateError(nil, "patient") != nil {
		t.Error("expected nil")
	}
}

func TestTranslateError_KeepsCause(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}
	got := TranslateError(pgErr, "user")
	var target *pgconn.PgError
	if !errors.As(got, &target) || target.ConstraintName != "users_username_key" {
		t.Errorf("expected wrapped PgError, got %v", got)
	}
}
