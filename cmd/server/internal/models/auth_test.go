package models

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openoj/judgehub/internal/config"
)

func TestAuth(t *testing.T) {
	db := setupDB(t)

	tru := true
	fal := false
	keys := []config.Key{
		{
			ID:     uuid.New().String(),
			Note:   "Key 0",
			Token:  "abcdefg",
			Active: &tru,
		},
		{
			ID:     uuid.New().String(),
			Note:   "Key 1",
			Token:  "abcdefg",
			Active: &tru,
		},
		{
			ID:     uuid.New().String(),
			Note:   "Key 2",
			Token:  "abcdefg",
			Active: &tru,
		},
	}

	t.Run("LoadManyNoPerms", func(t *testing.T) {
		err := LoadAPIKeysFromConfig(context.Background(), db, keys)
		require.NoError(t, err, "failed to upsert keys")
		checkKeys(t, db, keys, true, Permissions{})
	})

	t.Run("LoadManyLessOne", func(t *testing.T) {
		modified := make([]config.Key, len(keys))
		copy(modified, keys)

		err := LoadAPIKeysFromConfig(context.Background(), db, modified[1:])
		require.NoError(t, err, "failed to upsert keys")

		checkKeys(t, db, modified[1:], true, Permissions{})
		checkKeys(t, db, modified[0:1], false, Permissions{})
	})

	t.Run("LoadManyMarkOneInactive", func(t *testing.T) {
		modified := make([]config.Key, len(keys))
		copy(modified, keys)

		modified[0].Active = &fal

		err := LoadAPIKeysFromConfig(context.Background(), db, modified)
		require.NoError(t, err, "failed to upsert keys")

		checkKeys(t, db, modified[1:], true, Permissions{})
		checkKeys(t, db, modified[0:1], false, Permissions{})
	})

	t.Run("LoadManyAddPermissionsAndRemove", func(t *testing.T) {
		modified := make([]config.Key, len(keys))
		copy(modified, keys)
		for i := range modified {
			modified[i].Active = &tru
		}

		modified[0].Permissions = config.KeyPermissions{Grader: true}

		err := LoadAPIKeysFromConfig(context.Background(), db, modified)
		require.NoError(t, err, "failed to upsert keys")

		checkKeys(t, db, modified[0:1], true, Permissions{Grader: true})
		checkKeys(t, db, modified[1:], true, Permissions{})

		modified[0].Permissions = config.KeyPermissions{Worker: true}

		err = LoadAPIKeysFromConfig(context.Background(), db, modified)
		require.NoError(t, err, "failed to upsert keys")

		checkKeys(t, db, modified[0:1], true, Permissions{Worker: true})
		checkKeys(t, db, modified[1:], true, Permissions{})
	})
}

func checkKeys(t *testing.T, db *gorm.DB, keys []config.Key, a bool, p Permissions) {
	for _, key := range keys {
		m, err := ByID[Auth](context.Background(), db, uuid.MustParse(key.ID))
		require.NoError(t, err, "failed to get key from db")

		assert.True(t, m.Active.Valid, "active is not valid")
		assert.Equalf(t, a, m.Active.V, "active not expected state: %s", key.Note)
		assert.Equalf(t, p, m.Permissions, "permissions not expected state: %s", key.Note)
	}
}
