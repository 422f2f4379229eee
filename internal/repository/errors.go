package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound se devuelve cuando no existe la fila buscada.
	ErrNotFound = errors.New("not found")
	// ErrConflict se devuelve ante una violación de unicidad.
	ErrConflict = errors.New("conflict")
)

const pgUniqueViolation = "23505"

// mapPgError traduce errores de pgx a los sentinelas del paquete.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}
