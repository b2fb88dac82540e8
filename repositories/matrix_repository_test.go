package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/refermart/refermart_backend/models"
)

func TestEnsureMatrixErr(t *testing.T) {
	ownerID := primitive.NewObjectID()

	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, ensureMatrixErr(ownerID, "starter", nil))
	})

	t.Run("duplicate key from racing ensure is success", func(t *testing.T) {
		dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
		assert.NoError(t, ensureMatrixErr(ownerID, "starter", dup))
	})

	t.Run("write conflict maps to conflict sentinel", func(t *testing.T) {
		err := ensureMatrixErr(ownerID, "starter", mongo.CommandError{Code: writeConflictCode})
		assert.True(t, errors.Is(err, models.ErrConcurrencyConflict))
	})

	t.Run("other errors surface", func(t *testing.T) {
		err := ensureMatrixErr(ownerID, "starter", fmt.Errorf("connection reset"))
		assert.Error(t, err)
	})
}
