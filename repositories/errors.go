package repositories

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/refermart/refermart_backend/models"
)

// mongo WriteConflict error code, raised when two transactions touch the
// same document.
const writeConflictCode = 112

// asConflict maps transient mongo transaction failures onto the engine's
// ConcurrencyConflict sentinel so callers can retry them; anything else is
// passed through wrapped.
func asConflict(err error, operation string) error {
	if err == nil {
		return nil
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		if serverErr.HasErrorCode(writeConflictCode) || serverErr.HasErrorLabel("TransientTransactionError") {
			return fmt.Errorf("%w: %s: %w", models.ErrConcurrencyConflict, operation, err)
		}
	}
	return fmt.Errorf("%s: %w", operation, err)
}
