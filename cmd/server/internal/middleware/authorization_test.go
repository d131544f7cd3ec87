package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openoj/judgehub/cmd/server/internal/models"
	"github.com/openoj/judgehub/internal/logger"
)

func TestAuthorization(t *testing.T) {
	l := logger.Logger
	t.Run("NeedsOneHasNone", func(t *testing.T) {
		hasPerm := hasPermission(
			context.TODO(),
			&models.Permissions{Student: true},
			&models.Permissions{},
			l,
		)
		assert.False(t, hasPerm, "needs student but does not have")
	})

	t.Run("NeedsOneHasExtra", func(t *testing.T) {
		hasPerm := hasPermission(
			context.TODO(),
			&models.Permissions{Student: true},
			&models.Permissions{Student: true, Grader: true},
			l,
		)
		assert.True(t, hasPerm, "needs student and has it")
	})

	t.Run("NeedsManyHasMany", func(t *testing.T) {
		hasPerm := hasPermission(
			context.TODO(),
			&models.Permissions{Student: true, Grader: true},
			&models.Permissions{Student: true, Grader: true},
			l,
		)
		assert.True(t, hasPerm, "needs student and grader and has both")
	})

	t.Run("NeedsOneHasOther", func(t *testing.T) {
		hasPerm := hasPermission(
			context.TODO(),
			&models.Permissions{Worker: true},
			&models.Permissions{Grader: true},
			l,
		)
		assert.False(t, hasPerm, "needs worker but does not have it")
	})

	t.Run("AdminIsNotImplied", func(t *testing.T) {
		hasPerm := hasPermission(
			context.TODO(),
			&models.Permissions{Admin: true},
			&models.Permissions{Student: true, Grader: true, Worker: true},
			l,
		)
		assert.False(t, hasPerm, "admin must be granted explicitly")
	})
}
