package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"quill/internal/models"
	"quill/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFixtures = `
users:
  - username: alice
    password: wonderland1
  - username: bob
posts:
  - author: alice
    title: Hello
    body: First *post*.
    tags: [Intro, go, go]
    liked_by: [bob, alice]
    comments:
      - author: bob
        body: Welcome!
  - author: bob
    title: Second
    body: Plain text.
`

func TestSeeder_GeneratesContent(t *testing.T) {
	db := testutil.NewTestDB(t)

	res, err := NewSeeder(db, Options{Users: 3, Posts: 4, FastHash: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Users)
	assert.Equal(t, 4, res.Posts)
	assert.Positive(t, res.Comments)
	assert.Positive(t, res.Likes)

	var posts, likes int64
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
	assert.Equal(t, int64(4), posts)
	assert.Equal(t, int64(res.Likes), likes)
}

func TestSeeder_AppliesFixtures(t *testing.T) {
	db := testutil.NewTestDB(t)
	path := filepath.Join(t.TempDir(), "fixtures.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleFixtures), 0o600))

	res, err := NewSeeder(db, Options{Fixtures: path, FastHash: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Result{Users: 2, Posts: 2, Comments: 1, Likes: 2}, res)

	var hello models.Post
	require.NoError(t, db.Where("title = ?", "Hello").First(&hello).Error)

	var tags []string
	require.NoError(t, db.Table("tags").
		Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
		Where("post_tags.post_id = ?", hello.ID).
		Order("tags.name").
		Pluck("tags.name", &tags).Error)
	assert.Equal(t, []string{"go", "intro"}, tags)
}

func TestSeeder_CleanRemovesEverything(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, err := NewSeeder(db, Options{Users: 2, Posts: 2, FastHash: true}).Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, Clean(db))

	for _, model := range []interface{}{&models.User{}, &models.Post{}, &models.Tag{}, &models.Comment{}, &models.Like{}, &models.PostTag{}} {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		assert.Zero(t, n, "%T", model)
	}
}

func TestParseFixtures_Errors(t *testing.T) {
	_, err := ParseFixtures([]byte("users:\n  - username: a\n    nickname: x\n"))
	assert.Error(t, err, "unknown keys are rejected")

	db := testutil.NewTestDB(t)
	f, err := ParseFixtures([]byte("posts:\n  - author: ghost\n    title: T\n    body: B\n"))
	require.NoError(t, err)
	err = NewSeeder(db, Options{FastHash: true}).ApplyFixtures(context.Background(), f, &Result{})
	assert.ErrorContains(t, err, `unknown user "ghost"`)
}

func TestLoadFixtures_MissingFile(t *testing.T) {
	_, err := LoadFixtures(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
