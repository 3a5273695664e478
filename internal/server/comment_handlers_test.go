package server

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"quill/internal/models"
	"quill/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComments(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "test", "password1")
	testutil.CreatePost(t, ts.db, author.ID, "title", "body", time.Time{})
	cookie := ts.cookieFor(t, author)

	resp := ts.do(t, request{method: http.MethodPost, path: "/1/comment", cookie: cookie,
		form: url.Values{"body": {"first!"}}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/1", resp.Header.Get("Location"))

	resp = ts.do(t, request{method: http.MethodPost, path: "/1/comment", cookie: cookie,
		form: url.Values{"body": {"   "}}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, request{method: http.MethodGet, path: "/1/comments"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct {
		PostID   uint             `json:"post_id"`
		Comments []models.Comment `json:"comments"`
	}](t, resp)
	assert.Equal(t, uint(1), list.PostID)
	require.Len(t, list.Comments, 1)
	assert.Equal(t, "first!", list.Comments[0].Body)
	assert.Equal(t, "test", list.Comments[0].Username)
}
