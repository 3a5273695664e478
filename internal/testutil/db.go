// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// NewTestDB opens a private in-memory SQLite database with the full schema applied.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := &config.Config{
		Env:      "test",
		DBDriver: "sqlite",
		DBPath:   fmt.Sprintf("file:quill_test_%d?mode=memory&cache=shared", dbSeq.Add(1)),
	}
	db, err := database.Connect(cfg)
	require.NoError(t, err)
	require.NoError(t, database.ApplySchema(context.Background(), db, cfg))

	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// CreateUser inserts a user whose password is password.
func CreateUser(t testing.TB, db *gorm.DB, username, password string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{Username: username, Password: string(hash), AvatarPath: models.DefaultAvatarPath}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreatePost inserts a post authored by authorID. A zero created defaults to now.
func CreatePost(t testing.TB, db *gorm.DB, authorID uint, title, body string, created time.Time) *models.Post {
	t.Helper()

	post := &models.Post{Title: title, Body: body, AuthorID: authorID, Created: created}
	require.NoError(t, db.Create(post).Error)
	return post
}

// TagPost links post to the named tags, creating them as needed.
func TagPost(t testing.TB, db *gorm.DB, postID uint, names ...string) {
	t.Helper()

	for _, name := range names {
		tag := models.Tag{Name: name}
		require.NoError(t, db.Where(models.Tag{Name: name}).FirstOrCreate(&tag).Error)
		require.NoError(t, db.Create(&models.PostTag{PostID: postID, TagID: tag.ID}).Error)
	}
}
