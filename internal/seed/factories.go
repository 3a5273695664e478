package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"quill/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

var topics = []string{
	"go", "databases", "web", "testing", "design", "devops",
	"linux", "books", "music", "travel", "cooking", "photography",
}

// PostDraft is generated post content. Tags is a comma-separated list.
type PostDraft struct {
	Title string
	Body  string
	Tags  string
}

// Factory generates fake content.
type Factory struct {
	faker *gofakeit.Faker
	rnd   *rand.Rand
	seq   int
}

// NewFactory returns a randomly seeded factory.
func NewFactory() *Factory {
	return NewFactoryWithSeed(time.Now().UnixNano())
}

// NewFactoryWithSeed returns a factory whose output is reproducible for seed.
func NewFactoryWithSeed(seed int64) *Factory {
	return &Factory{
		faker: gofakeit.New(seed),
		rnd:   rand.New(rand.NewSource(seed)),
	}
}

// Username returns a valid, unique username.
func (f *Factory) Username() string {
	f.seq++
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return -1
	}, f.faker.Username())
	if len(base) > 20 {
		base = base[:20]
	}
	if len(base) < 3 {
		base = "user"
	}
	return fmt.Sprintf("%s%d", base, f.seq)
}

// Post returns a post with a short Markdown body and one to three tags.
func (f *Factory) Post() PostDraft {
	title := strings.TrimSuffix(f.faker.Sentence(f.rnd.Intn(5)+3), ".")
	if len(title) > 200 {
		title = title[:200]
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%s\n\n", f.faker.Paragraph(1, 3, 12, " "))
	fmt.Fprintf(&body, "- %s\n- %s\n\n", f.faker.HipsterSentence(4), f.faker.HipsterSentence(5))
	fmt.Fprintf(&body, "**%s** %s", f.faker.BuzzWord(), f.faker.Paragraph(1, 2, 10, " "))

	tags := make([]string, 0, 3)
	for _, i := range f.rnd.Perm(len(topics))[:f.rnd.Intn(3)+1] {
		tags = append(tags, topics[i])
	}

	return PostDraft{Title: title, Body: body.String(), Tags: strings.Join(tags, ", ")}
}

// Comment returns a one or two sentence comment.
func (f *Factory) Comment() string {
	return f.faker.Sentence(f.rnd.Intn(12) + 4)
}

// CreatedWithin returns a timestamp up to maxDays in the past.
func (f *Factory) CreatedWithin(maxDays int) time.Time {
	back := time.Duration(f.rnd.Int63n(int64(maxDays) * int64(24*time.Hour)))
	return time.Now().Add(-back).Truncate(time.Second)
}

// Intn returns a number in [0, n).
func (f *Factory) Intn(n int) int {
	return f.rnd.Intn(n)
}

// Sample picks up to n distinct users.
func (f *Factory) Sample(users []*models.User, n int) []*models.User {
	if n > len(users) {
		n = len(users)
	}
	out := make([]*models.User, 0, n)
	for _, i := range f.rnd.Perm(len(users))[:n] {
		out = append(out, users[i])
	}
	return out
}
