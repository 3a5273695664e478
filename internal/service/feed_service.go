package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quill/internal/config"
	"quill/internal/repository"

	"github.com/gorilla/feeds"
)

const (
	DefaultFeedItems = 20
	feedExcerptRunes = 280
)

// FeedService renders the RSS feed of recent posts.
type FeedService struct {
	posts       repository.PostRepository
	markdown    *MarkdownRenderer
	title       string
	description string
	baseURL     string
	items       int
}

func NewFeedService(posts repository.PostRepository, cfg *config.Config) *FeedService {
	s := &FeedService{
		posts:       posts,
		markdown:    NewMarkdownRenderer(),
		title:       "Quill",
		description: "Recent posts",
		baseURL:     "http://localhost:8080",
		items:       DefaultFeedItems,
	}
	if cfg != nil {
		if cfg.SiteTitle != "" {
			s.title = cfg.SiteTitle
		}
		if cfg.SiteDescription != "" {
			s.description = cfg.SiteDescription
		}
		if cfg.BaseURL != "" {
			s.baseURL = cfg.BaseURL
		}
		if cfg.RSSItems > 0 {
			s.items = cfg.RSSItems
		}
	}
	s.baseURL = strings.TrimRight(s.baseURL, "/")
	return s
}

// RSS returns an RSS 2.0 document listing the newest posts first.
func (s *FeedService) RSS(ctx context.Context) (string, error) {
	posts, err := s.posts.List(ctx, s.items, 0, 0)
	if err != nil {
		return "", err
	}

	feed := &feeds.Feed{
		Title:       s.title,
		Link:        &feeds.Link{Href: s.baseURL + "/"},
		Description: s.description,
		Created:     time.Now().UTC(),
	}
	if len(posts) > 0 {
		feed.Updated = posts[0].Created
	}

	for _, p := range posts {
		description := p.Body
		if rendered, err := s.markdown.Render(p.Body); err == nil {
			if excerpt, err := PlainExcerpt(rendered, feedExcerptRunes); err == nil {
				description = excerpt
			}
		}
		link := fmt.Sprintf("%s/%d", s.baseURL, p.ID)
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          link,
			Title:       p.Title,
			Link:        &feeds.Link{Href: link},
			Author:      &feeds.Author{Name: p.Username},
			Description: description,
			Created:     p.Created,
		})
	}

	out, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("render rss: %w", err)
	}
	return out, nil
}
