package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/refermart/refermart_backend/models"
)

func TestAsConflict(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantConflict bool
	}{
		{
			name: "nil passes through",
			err:  nil,
		},
		{
			name:         "write conflict code",
			err:          mongo.CommandError{Code: writeConflictCode, Message: "WriteConflict"},
			wantConflict: true,
		},
		{
			name:         "transient transaction label",
			err:          mongo.CommandError{Code: 251, Labels: []string{"TransientTransactionError"}},
			wantConflict: true,
		},
		{
			name: "unrelated server error",
			err:  mongo.CommandError{Code: 11000, Message: "duplicate key"},
		},
		{
			name: "non-mongo error",
			err:  fmt.Errorf("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := asConflict(tt.err, "credit wallet")
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			assert.Equal(t, tt.wantConflict, errors.Is(got, models.ErrConcurrencyConflict))
			// The original error stays inspectable through the wrap.
			var cmdErr mongo.CommandError
			if errors.As(tt.err, &cmdErr) {
				assert.True(t, errors.As(got, &cmdErr))
			}
		})
	}
}
