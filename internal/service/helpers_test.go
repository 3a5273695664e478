package service

import (
	"context"
	"sync"
	"testing"

	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/testutil"

	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.PostEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event models.PostEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Events() []models.PostEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.PostEvent(nil), p.events...)
}

// imageStoreStub is a stub for ImageStore.
type imageStoreStub struct {
	saveFn func(context.Context, UploadImageInput) (string, error)
}

func (s *imageStoreStub) Save(ctx context.Context, in UploadImageInput) (string, error) {
	return s.saveFn(ctx, in)
}

type fixture struct {
	db       *gorm.DB
	posts    repository.PostRepository
	tags     repository.TagRepository
	comments repository.CommentRepository
	likes    repository.LikeRepository
	images   repository.ImageRepository
	users    repository.UserRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	return &fixture{
		db:       db,
		posts:    repository.NewPostRepository(db),
		tags:     repository.NewTagRepository(db),
		comments: repository.NewCommentRepository(db),
		likes:    repository.NewLikeRepository(db),
		images:   repository.NewImageRepository(db),
		users:    repository.NewUserRepository(db),
	}
}

func (f *fixture) postService(opts ...PostServiceOption) *PostService {
	return NewPostService(f.posts, f.tags, f.comments, f.images, opts...)
}
