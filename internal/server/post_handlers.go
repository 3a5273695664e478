package server

import (
	"strconv"
	"strings"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// postForm is the create/update payload. Tags is a comma-separated list; form posts may
// also repeat the tags field.
type postForm struct {
	Title string `json:"title" form:"title"`
	Body  string `json:"body" form:"body"`
	Tags  string `json:"tags" form:"tags"`
}

func parsePostForm(c *fiber.Ctx) (postForm, error) {
	var form postForm
	if len(c.Body()) == 0 {
		return form, nil
	}
	if err := c.BodyParser(&form); err != nil {
		return form, models.NewValidationError("Invalid request body")
	}
	if !wantsJSON(c) {
		if values := formValues(c, "tags"); len(values) > 1 {
			form.Tags = strings.Join(values, ",")
		}
	}
	return form, nil
}

// Index handles GET /
// @Summary List posts
// @Description One page of posts, newest first
// @Tags posts
// @Produce json
// @Param page query int false "Page number, starting at 1"
// @Success 200 {object} models.PostPage
// @Router / [get]
func (s *Server) Index(c *fiber.Ctx) error {
	page, err := s.postService.ListPosts(c.UserContext(), c.QueryInt("page", 1), middleware.CurrentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// ShowPost handles GET /:id
// @Summary Get post
// @Description A post with its comments, tags, image and rendered body
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /{id} [get]
func (s *Server) ShowPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, middleware.CurrentUserID(c), false)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// CreateForm handles GET /create
func (s *Server) CreateForm(c *fiber.Ctx) error {
	return c.JSON(postForm{})
}

// CreatePost handles POST /create
// @Summary Create post
// @Tags posts
// @Accept json,mpfd,x-www-form-urlencoded
// @Produce json
// @Param title formData string true "Title"
// @Param body formData string true "Body"
// @Param tags formData string false "Comma-separated tags"
// @Param image formData file false "Image"
// @Success 201 {object} models.Post
// @Success 302
// @Failure 400 {object} models.ErrorResponse
// @Router /create [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	form, err := parsePostForm(c)
	if err != nil {
		return respondError(c, err)
	}
	image, err := readUpload(c, "image", s.config.ImageMaxUploadBytes)
	if err != nil {
		return respondError(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID: middleware.CurrentUserID(c),
		Title:    form.Title,
		Body:     form.Body,
		Tags:     form.Tags,
		Image:    image,
	})
	if err != nil {
		return respondError(c, err)
	}
	return redirectOrJSON(c, "/", fiber.StatusCreated, post)
}

// EditForm handles GET /:id/update
func (s *Server) EditForm(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, middleware.CurrentUserID(c), true)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"post": post,
		"form": postForm{Title: post.Title, Body: post.Body, Tags: strings.Join(post.Tags, ", ")},
	})
}

// UpdatePost handles POST /:id/update
// @Summary Update post
// @Description Replaces title, body and the whole tag set. Only the author may update.
// @Tags posts
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /{id}/update [post]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	// Missing posts and other authors are rejected before the body is looked at.
	if _, err := s.postService.GetPost(c.UserContext(), id, middleware.CurrentUserID(c), true); err != nil {
		return respondError(c, err)
	}
	form, err := parsePostForm(c)
	if err != nil {
		return respondError(c, err)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		PostID: id,
		UserID: middleware.CurrentUserID(c),
		Title:  form.Title,
		Body:   form.Body,
		Tags:   form.Tags,
	})
	if err != nil {
		return respondError(c, err)
	}
	return redirectOrJSON(c, "/"+strconv.FormatUint(uint64(id), 10), fiber.StatusOK, post)
}

// DeletePost handles POST /:id/delete
// @Summary Delete post
// @Tags posts
// @Param id path int true "Post ID"
// @Success 302
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /{id}/delete [post]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), id, middleware.CurrentUserID(c)); err != nil {
		return respondError(c, err)
	}
	return redirectOrJSON(c, "/", fiber.StatusOK, fiber.Map{"id": id, "deleted": true})
}

// ToggleLike handles POST /:id/like
// @Summary Like or unlike a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.LikeResult
// @Failure 404 {object} models.ErrorResponse
// @Router /{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.likeService.ToggleLike(c.UserContext(), middleware.CurrentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// ListByTag handles GET /tag/:name
func (s *Server) ListByTag(c *fiber.Ctx) error {
	name := c.Params("name")
	posts, err := s.postService.ListByTag(c.UserContext(), name, middleware.CurrentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"tag": strings.ToLower(strings.TrimSpace(name)), "posts": posts})
}

// Search handles POST /search with a query form field. GET /search?query= is accepted too.
// @Summary Search posts
// @Description Case-insensitive substring match on post titles
// @Tags posts
// @Param query formData string true "Search text"
// @Success 200 {object} object{query=string,posts=[]models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Router /search [post]
func (s *Server) Search(c *fiber.Ctx) error {
	var req struct {
		Query string `json:"query" form:"query" query:"query"`
	}
	if c.Method() == fiber.MethodGet {
		req.Query = c.Query("query", c.Query("q"))
	} else if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	posts, err := s.postService.Search(c.UserContext(), req.Query, middleware.CurrentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"query": strings.TrimSpace(req.Query), "posts": posts})
}

// RSS handles GET /rss
// @Summary RSS feed
// @Produce xml
// @Success 200 {string} string "RSS 2.0 document"
// @Router /rss [get]
func (s *Server) RSS(c *fiber.Ctx) error {
	feed, err := s.feedService.RSS(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/rss+xml; charset=utf-8")
	return c.SendString(feed)
}
