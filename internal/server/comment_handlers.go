package server

import (
	"strconv"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AddComment handles POST /:id/comment
// @Summary Comment on a post
// @Tags comments
// @Param id path int true "Post ID"
// @Param body formData string true "Comment text"
// @Success 201 {object} models.Comment
// @Success 302
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /{id}/comment [post]
func (s *Server) AddComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Body string `json:"body" form:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentService.AddComment(c.UserContext(), service.AddCommentInput{
		PostID:   id,
		AuthorID: middleware.CurrentUserID(c),
		Body:     req.Body,
	})
	if err != nil {
		return respondError(c, err)
	}
	if user := middleware.CurrentUser(c); user != nil {
		comment.Username = user.Username
	}
	return redirectOrJSON(c, "/"+strconv.FormatUint(uint64(id), 10), fiber.StatusCreated, comment)
}

// ListComments handles GET /:id/comments
// @Summary List comments
// @Description Comments of a post, newest first
// @Tags comments
// @Param id path int true "Post ID"
// @Success 200 {object} object{post_id=int,comments=[]models.Comment}
// @Failure 404 {object} models.ErrorResponse
// @Router /{id}/comments [get]
func (s *Server) ListComments(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	comments, err := s.commentService.ListComments(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return c.JSON(fiber.Map{"post_id": id, "comments": comments})
}
