// Package seed fills a database with demo content for development and tests.
// Everything is written through the services so seeded data obeys the same
// rules as data entered by users.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/service"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated user.
const DefaultPassword = "password123"

// Options configures a seeding run.
type Options struct {
	Users    int
	Posts    int
	MaxDays  int
	Fixtures string
	Clean    bool
	// FastHash uses bcrypt.MinCost, which keeps large seeds and tests quick.
	FastHash bool
}

// Result counts what a run created.
type Result struct {
	Users    int
	Posts    int
	Comments int
	Likes    int
}

// Seeder creates users, posts, comments and likes.
type Seeder struct {
	db       *gorm.DB
	opts     Options
	users    *service.UserService
	posts    *service.PostService
	comments *service.CommentService
	likes    *service.LikeService
	factory  *Factory
}

func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	cost := bcrypt.DefaultCost
	if opts.FastHash {
		cost = bcrypt.MinCost
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	return &Seeder{
		db:       db,
		opts:     opts,
		users:    service.NewUserService(userRepo, service.WithBcryptCost(cost)),
		posts:    service.NewPostService(postRepo, repository.NewTagRepository(db), commentRepo, repository.NewImageRepository(db)),
		comments: service.NewCommentService(commentRepo, postRepo, nil),
		likes:    service.NewLikeService(postRepo, repository.NewLikeRepository(db), nil),
		factory:  NewFactory(),
	}
}

// Run applies fixtures first, then generates random content.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	if s.opts.Clean {
		if err := Clean(s.db); err != nil {
			return nil, err
		}
	}

	if s.opts.Fixtures != "" {
		fixtures, err := LoadFixtures(s.opts.Fixtures)
		if err != nil {
			return nil, err
		}
		if err := s.ApplyFixtures(ctx, fixtures, res); err != nil {
			return nil, err
		}
	}

	if err := s.generate(ctx, res); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "Seeding complete",
		slog.Int("users", res.Users),
		slog.Int("posts", res.Posts),
		slog.Int("comments", res.Comments),
		slog.Int("likes", res.Likes),
	)
	return res, nil
}

func (s *Seeder) generate(ctx context.Context, res *Result) error {
	if s.opts.Users <= 0 {
		return nil
	}

	authors := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		user, err := s.users.Register(ctx, service.RegisterInput{
			Username: s.factory.Username(),
			Password: DefaultPassword,
		})
		if err != nil {
			return fmt.Errorf("seed user: %w", err)
		}
		authors = append(authors, user)
		res.Users++
	}

	for i := 0; i < s.opts.Posts; i++ {
		author := authors[s.factory.Intn(len(authors))]
		draft := s.factory.Post()
		post, err := s.posts.CreatePost(ctx, service.CreatePostInput{
			AuthorID: author.ID,
			Title:    draft.Title,
			Body:     draft.Body,
			Tags:     draft.Tags,
		})
		if err != nil {
			return fmt.Errorf("seed post: %w", err)
		}
		res.Posts++

		if err := s.backdate(post.ID, s.factory.CreatedWithin(s.opts.MaxDays)); err != nil {
			return err
		}

		for _, reader := range s.factory.Sample(authors, 3) {
			if _, err := s.comments.AddComment(ctx, service.AddCommentInput{
				PostID:   post.ID,
				AuthorID: reader.ID,
				Body:     s.factory.Comment(),
			}); err != nil {
				return fmt.Errorf("seed comment: %w", err)
			}
			res.Comments++
		}
		for _, fan := range s.factory.Sample(authors, len(authors)/2+1) {
			if _, err := s.likes.ToggleLike(ctx, fan.ID, post.ID); err != nil {
				return fmt.Errorf("seed like: %w", err)
			}
			res.Likes++
		}
	}
	return nil
}

// backdate spreads posts over the past so the listing has a realistic order.
func (s *Seeder) backdate(postID uint, created time.Time) error {
	if err := s.db.Model(&models.Post{}).Where("id = ?", postID).Update("created", created).Error; err != nil {
		return fmt.Errorf("backdate post %d: %w", postID, err)
	}
	return nil
}

// Clean removes all content. Dependent tables go first.
func Clean(db *gorm.DB) error {
	tables := []interface{}{
		&models.PostTag{},
		&models.Like{},
		&models.Comment{},
		&models.Image{},
		&models.Post{},
		&models.Tag{},
		&models.User{},
	}
	for _, model := range tables {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			return fmt.Errorf("clean %T: %w", model, err)
		}
	}
	return nil
}
