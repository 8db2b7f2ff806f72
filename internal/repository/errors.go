package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/noah-isme/shift-ledger-api/internal/models"
)

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// StaleTimecardError is returned when a dispute override finds the timecard in
// a status it may not rewrite.
type StaleTimecardError struct {
	ID     string
	Status models.TimecardStatus
}

func (e *StaleTimecardError) Error() string {
	return fmt.Sprintf("timecard %s is %s", e.ID, e.Status)
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
