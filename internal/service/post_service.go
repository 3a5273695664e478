package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"
)

const (
	DefaultPostsPerPage = 5
	maxTitleLen         = 200
	maxBodyLen          = 50000
	maxTagLen           = 50
	// maxPage keeps the list offset far from integer overflow.
	maxPage = 100000
)

// EventPublisher broadcasts live post events.
type EventPublisher interface {
	Publish(ctx context.Context, event models.PostEvent) error
}

type PostService struct {
	posts    repository.PostRepository
	tags     repository.TagRepository
	comments repository.CommentRepository
	images   repository.ImageRepository

	store    ImageStore
	markdown *MarkdownRenderer
	events   EventPublisher
	perPage  int
}

// PostServiceOption configures optional collaborators of PostService.
type PostServiceOption func(*PostService)

// WithImageStore enables image attachments on new posts.
func WithImageStore(store ImageStore) PostServiceOption {
	return func(s *PostService) { s.store = store }
}

// WithMarkdown renders body_html on single-post reads.
func WithMarkdown(r *MarkdownRenderer) PostServiceOption {
	return func(s *PostService) { s.markdown = r }
}

// WithPublisher publishes a post_created event after each new post.
func WithPublisher(p EventPublisher) PostServiceOption {
	return func(s *PostService) { s.events = p }
}

// WithPageSize sets the number of posts per index page.
func WithPageSize(n int) PostServiceOption {
	return func(s *PostService) {
		if n > 0 {
			s.perPage = n
		}
	}
}

type CreatePostInput struct {
	AuthorID uint
	Title    string
	Body     string
	Tags     string
	Image    *UploadImageInput
}

type UpdatePostInput struct {
	PostID uint
	UserID uint
	Title  string
	Body   string
	Tags   string
}

func NewPostService(
	posts repository.PostRepository,
	tags repository.TagRepository,
	comments repository.CommentRepository,
	images repository.ImageRepository,
	opts ...PostServiceOption,
) *PostService {
	s := &PostService{
		posts:    posts,
		tags:     tags,
		comments: comments,
		images:   images,
		perPage:  DefaultPostsPerPage,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PerPage returns the configured page size.
func (s *PostService) PerPage() int {
	return s.perPage
}

// ListPosts returns one page of posts, newest first. Pages start at 1; lower values
// are treated as 1 and values past maxPage as maxPage.
func (s *PostService) ListPosts(ctx context.Context, page int, viewerID uint) (*models.PostPage, error) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	posts, err := s.posts.List(ctx, s.perPage+1, (page-1)*s.perPage, viewerID)
	if err != nil {
		return nil, err
	}

	hasNext := len(posts) > s.perPage
	if hasNext {
		posts = posts[:s.perPage]
	}
	if err := s.decorate(ctx, posts, viewerID); err != nil {
		return nil, err
	}

	return &models.PostPage{
		Posts:   posts,
		Page:    page,
		PerPage: s.perPage,
		HasNext: hasNext,
	}, nil
}

// GetPost loads a post with its tags, comments (newest first) and rendered body.
// With checkAuthor set, a viewer other than the author gets a forbidden error.
func (s *PostService) GetPost(ctx context.Context, id, viewerID uint, checkAuthor bool) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	if checkAuthor && !post.IsAuthor(viewerID) {
		return nil, models.NewForbiddenError("You can only modify your own posts")
	}

	if err := s.decorate(ctx, []*models.Post{post}, viewerID); err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByPost(ctx, id)
	if err != nil {
		return nil, err
	}
	post.Comments = comments

	if s.markdown != nil {
		rendered, err := s.markdown.Render(post.Body)
		if err != nil {
			return nil, err
		}
		post.BodyHTML = rendered
	}
	return post, nil
}

// ListByTag returns every post carrying the tag, newest first.
func (s *PostService) ListByTag(ctx context.Context, name string, viewerID uint) ([]*models.Post, error) {
	name = normalizeTag(name)
	if name == "" {
		return nil, models.NewValidationError("Tag is required")
	}
	posts, err := s.posts.ListByTag(ctx, name, viewerID)
	if err != nil {
		return nil, err
	}
	return posts, s.decorate(ctx, posts, viewerID)
}

// Search matches query as a case-insensitive substring of post titles.
func (s *PostService) Search(ctx context.Context, query string, viewerID uint) ([]*models.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Query is required")
	}
	posts, err := s.posts.Search(ctx, query, viewerID)
	if err != nil {
		return nil, err
	}
	return posts, s.decorate(ctx, posts, viewerID)
}

// CreatePost validates the input, then inserts the post, its tags and its image.
// Each insert commits on its own.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "CreatePost")
	defer span.End()

	title, body, err := validatePost(in.Title, in.Body)
	if err != nil {
		return nil, err
	}
	tagNames, err := ParseTags(in.Tags)
	if err != nil {
		return nil, err
	}

	var imagePath string
	if in.Image != nil && len(in.Image.Content) > 0 {
		if s.store == nil {
			return nil, models.NewValidationError("Image uploads are disabled")
		}
		imagePath, err = s.store.Save(ctx, *in.Image)
		if err != nil {
			return nil, err
		}
	}

	post := &models.Post{Title: title, Body: body, AuthorID: in.AuthorID}
	if err := s.posts.Create(ctx, post); err != nil {
		observability.RecordErrorInContext(ctx, err)
		return nil, err
	}
	if err := s.linkTags(ctx, post.ID, tagNames); err != nil {
		return nil, err
	}
	if imagePath != "" {
		if err := s.images.Create(ctx, &models.Image{PostID: post.ID, ImagePath: imagePath}); err != nil {
			return nil, err
		}
	}

	observability.PostsCreated.Inc()
	middleware.Logger.InfoContext(ctx, "Post created", slog.Uint64("post_id", uint64(post.ID)), slog.Int("tags", len(tagNames)))
	s.publish(ctx, models.PostEvent{
		Type:      models.EventPostCreated,
		PostID:    post.ID,
		UserID:    in.AuthorID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	})

	return s.GetPost(ctx, post.ID, in.AuthorID, false)
}

// UpdatePost replaces title and body and swaps the whole tag set for the new list.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	if !post.IsAuthor(in.UserID) {
		return nil, models.NewForbiddenError("You can only modify your own posts")
	}

	title, body, err := validatePost(in.Title, in.Body)
	if err != nil {
		return nil, err
	}
	tagNames, err := ParseTags(in.Tags)
	if err != nil {
		return nil, err
	}

	post.Title = title
	post.Body = body
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}
	if err := s.tags.UnlinkAll(ctx, post.ID); err != nil {
		return nil, err
	}
	if err := s.linkTags(ctx, post.ID, tagNames); err != nil {
		return nil, err
	}

	return s.GetPost(ctx, post.ID, in.UserID, false)
}

// DeletePost removes the post and everything attached to it except tags.
func (s *PostService) DeletePost(ctx context.Context, id, userID uint) error {
	post, err := s.posts.GetByID(ctx, id, userID)
	if err != nil {
		return err
	}
	if !post.IsAuthor(userID) {
		return models.NewForbiddenError("You can only modify your own posts")
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}

	observability.PostsDeleted.Inc()
	middleware.Logger.InfoContext(ctx, "Post deleted", slog.Uint64("post_id", uint64(id)))
	return nil
}

func (s *PostService) linkTags(ctx context.Context, postID uint, names []string) error {
	for _, name := range names {
		tag, err := s.tags.GetOrCreate(ctx, name)
		if err != nil {
			return err
		}
		if err := s.tags.Link(ctx, postID, tag.ID); err != nil {
			return err
		}
	}
	return nil
}

// decorate fills tags and the author-only edit link.
func (s *PostService) decorate(ctx context.Context, posts []*models.Post, viewerID uint) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	tagsByPost, err := s.tags.NamesByPost(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range posts {
		p.Tags = tagsByPost[p.ID]
		if p.Tags == nil {
			p.Tags = []string{}
		}
		if p.IsAuthor(viewerID) {
			p.EditURL = fmt.Sprintf("/%d/update", p.ID)
		}
	}
	return nil
}

func (s *PostService) publish(ctx context.Context, event models.PostEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to publish post event",
			slog.String("type", event.Type),
			slog.String("error", err.Error()),
		)
	}
}

func validatePost(title, body string) (string, string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", "", models.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", "", models.NewValidationError(fmt.Sprintf("Title too long (max %d characters)", maxTitleLen))
	}
	if strings.TrimSpace(body) == "" {
		return "", "", models.NewValidationError("Body is required")
	}
	if utf8.RuneCountInString(body) > maxBodyLen {
		return "", "", models.NewValidationError(fmt.Sprintf("Body too long (max %d characters)", maxBodyLen))
	}
	return title, body, nil
}

// ParseTags splits a comma-separated tag list. Names are trimmed and lowercased;
// blanks and repeats are dropped, order of first appearance is kept.
func ParseTags(raw string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		name := normalizeTag(part)
		if name == "" {
			continue
		}
		if utf8.RuneCountInString(name) > maxTagLen {
			return nil, models.NewValidationError(fmt.Sprintf("Tag %q is too long (max %d characters)", name, maxTagLen))
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

func normalizeTag(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
