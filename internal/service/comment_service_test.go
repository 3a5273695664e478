package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"quill/internal/models"
	"quill/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentService_AddComment(t *testing.T) {
	f := newFixture(t)
	author := testutil.CreateUser(t, f.db, "test", "secret123")
	post := testutil.CreatePost(t, f.db, author.ID, "t", "b", time.Time{})
	pub := &recordingPublisher{}
	svc := NewCommentService(f.comments, f.posts, pub)
	ctx := context.Background()

	comment, err := svc.AddComment(ctx, AddCommentInput{PostID: post.ID, AuthorID: author.ID, Body: "  nice post  "})
	require.NoError(t, err)
	assert.NotZero(t, comment.ID)
	assert.Equal(t, "nice post", comment.Body)

	listed, err := svc.ListComments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "test", listed[0].Username)

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventCommentAdded, events[0].Type)
}

func TestCommentService_AddComment_Validation(t *testing.T) {
	f := newFixture(t)
	author := testutil.CreateUser(t, f.db, "test", "secret123")
	post := testutil.CreatePost(t, f.db, author.ID, "t", "b", time.Time{})
	svc := NewCommentService(f.comments, f.posts, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		in   AddCommentInput
		code string
		msg  string
	}{
		{name: "empty body", in: AddCommentInput{PostID: post.ID, AuthorID: author.ID, Body: " "}, code: models.CodeValidation, msg: "Body is required"},
		{name: "too long", in: AddCommentInput{PostID: post.ID, AuthorID: author.ID, Body: strings.Repeat("a", 2001)}, code: models.CodeValidation, msg: "Comment too long (max 2000 characters)"},
		{name: "missing post", in: AddCommentInput{PostID: 99, AuthorID: author.ID, Body: "hi"}, code: models.CodeNotFound, msg: "Post with ID 99 not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddComment(ctx, tt.in)
			require.Error(t, err)
			assert.True(t, models.HasCode(err, tt.code))
			assert.Equal(t, tt.msg, err.Error())
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Comment{}).Count(&count).Error)
	assert.Zero(t, count)

	_, err := svc.ListComments(ctx, 99)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}
