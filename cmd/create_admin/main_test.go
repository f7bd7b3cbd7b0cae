package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelforge/internal/config"
	"pixelforge/internal/database"
	"pixelforge/internal/domain"
	"pixelforge/internal/util"
)

func TestCreateAdminIsIdempotent(t *testing.T) {
	db, err := database.Open(&config.DatabaseConfig{URL: "sqlite:///:memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	created, err := createAdmin(db, "Root", "Root@Example.com", "correct-horse")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = createAdmin(db, "Root again", "root@example.com", "another-pass")
	require.NoError(t, err)
	assert.False(t, created)

	var admin domain.User
	require.NoError(t, db.Where("email = ?", "root@example.com").First(&admin).Error)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.True(t, admin.IsActive())
	assert.True(t, util.CheckPasswordHash("correct-horse", admin.Password))
}
