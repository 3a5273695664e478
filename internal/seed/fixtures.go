package seed

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"quill/internal/models"
	"quill/internal/service"

	"gopkg.in/yaml.v3"
)

// Fixtures is a hand-written data set, usually loaded from a YAML file:
//
//	users:
//	  - username: alice
//	    password: wonderland1
//	posts:
//	  - author: alice
//	    title: Hello
//	    body: First *post*.
//	    tags: [intro, go]
//	    liked_by: [alice]
//	    comments:
//	      - author: alice
//	        body: Replying to myself.
type Fixtures struct {
	Users []UserFixture `yaml:"users"`
	Posts []PostFixture `yaml:"posts"`
}

type UserFixture struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type PostFixture struct {
	Author   string           `yaml:"author"`
	Title    string           `yaml:"title"`
	Body     string           `yaml:"body"`
	Tags     []string         `yaml:"tags"`
	LikedBy  []string         `yaml:"liked_by"`
	Comments []CommentFixture `yaml:"comments"`
}

type CommentFixture struct {
	Author string `yaml:"author"`
	Body   string `yaml:"body"`
}

// LoadFixtures reads a fixtures file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes YAML fixtures. Unknown keys are rejected.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &f, nil
}

// ApplyFixtures creates the users and posts in f. Users are referenced by username and
// must be declared in the same file.
func (s *Seeder) ApplyFixtures(ctx context.Context, f *Fixtures, res *Result) error {
	users := make(map[string]*models.User, len(f.Users))
	for _, u := range f.Users {
		password := u.Password
		if password == "" {
			password = DefaultPassword
		}
		user, err := s.users.Register(ctx, service.RegisterInput{Username: u.Username, Password: password})
		if err != nil {
			return fmt.Errorf("fixture user %q: %w", u.Username, err)
		}
		users[user.Username] = user
		res.Users++
	}

	lookup := func(name string) (*models.User, error) {
		user, ok := users[name]
		if !ok {
			return nil, fmt.Errorf("fixture references unknown user %q", name)
		}
		return user, nil
	}

	for _, p := range f.Posts {
		author, err := lookup(p.Author)
		if err != nil {
			return err
		}
		post, err := s.posts.CreatePost(ctx, service.CreatePostInput{
			AuthorID: author.ID,
			Title:    p.Title,
			Body:     p.Body,
			Tags:     strings.Join(p.Tags, ","),
		})
		if err != nil {
			return fmt.Errorf("fixture post %q: %w", p.Title, err)
		}
		res.Posts++

		for _, c := range p.Comments {
			commenter, err := lookup(c.Author)
			if err != nil {
				return err
			}
			if _, err := s.comments.AddComment(ctx, service.AddCommentInput{
				PostID:   post.ID,
				AuthorID: commenter.ID,
				Body:     c.Body,
			}); err != nil {
				return fmt.Errorf("fixture comment on %q: %w", p.Title, err)
			}
			res.Comments++
		}

		for _, name := range p.LikedBy {
			fan, err := lookup(name)
			if err != nil {
				return err
			}
			if _, err := s.likes.ToggleLike(ctx, fan.ID, post.ID); err != nil {
				return fmt.Errorf("fixture like on %q: %w", p.Title, err)
			}
			res.Likes++
		}
	}
	return nil
}
