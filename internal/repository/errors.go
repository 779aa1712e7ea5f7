// Package repository defines the MySQL data access layer and the sentinel
// errors shared by every store implementation.  Higher layers distinguish
// failure scenarios with errors.Is against these values; raw driver errors
// are only ever storage failures.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert or update violates a unique key,
// for example a second slot at the same court and start time or a second
// READY_TO_PLAY reservation on one slot.
var ErrDuplicate = errors.New("duplicate record")

// ErrConflict is returned when a delete cannot be performed because other
// rows still reference the record (a court with schedules, a guest with
// reservations).  Handlers report it as a failed precondition.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when registering an email that is already taken.
var ErrEmailExists = errors.New("email already exists")

// MySQL server error numbers the repositories translate.
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrRowIsReferenced = 1451
)

func mysqlErrorNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// translate maps driver errors onto the package sentinels.  Anything it
// does not recognise is returned unchanged.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	}
	switch mysqlErrorNumber(err) {
	case mysqlErrDuplicateEntry:
		return ErrDuplicate
	case mysqlErrRowIsReferenced:
		return ErrConflict
	}
	return err
}
