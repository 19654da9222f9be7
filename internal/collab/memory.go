// Package collab provides in-memory collaborator implementations. The serve
// command wires these in when no real integrations are configured, so the
// engine can run end to end against canned data.
package collab

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/draftwell/autopilot/internal/domain"
)

// Directory is a fixed client list.
type Directory struct {
	clients []domain.Client
}

func NewDirectory(clients ...domain.Client) *Directory {
	if len(clients) == 0 {
		clients = defaultClients()
	}
	return &Directory{clients: clients}
}

func (d *Directory) GetAll(context.Context) ([]domain.Client, error) {
	return append([]domain.Client(nil), d.clients...), nil
}

func (d *Directory) GetActive(context.Context) ([]domain.Client, error) {
	var active []domain.Client
	for _, c := range d.clients {
		if c.Active {
			active = append(active, c)
		}
	}
	return active, nil
}

func defaultClients() []domain.Client {
	return []domain.Client{
		{
			ID:       uuid.MustParse("a1000000-0000-0000-0000-000000000001"),
			Name:     "Northbeam Labs",
			Industry: "developer tools",
			Voice:    "technical, direct",
			Active:   true,
		},
		{
			ID:       uuid.MustParse("a1000000-0000-0000-0000-000000000002"),
			Name:     "Harbor & Vine",
			Industry: "hospitality",
			Voice:    "warm, story-driven",
			Active:   true,
		},
	}
}

// Catalog serves canned scrape results.
type Catalog struct {
	sources map[string][]domain.ContentItem
	clock   func() time.Time
}

func NewCatalog() *Catalog {
	return &Catalog{
		sources: map[string][]domain.ContentItem{
			"hackernews": {
				{Source: "hackernews", Title: "Postgres at scale", URL: "https://example.com/pg", QualityScore: 0.88},
				{Source: "hackernews", Title: "Yet another JS framework", URL: "https://example.com/js", QualityScore: 0.31},
			},
			"substack": {
				{Source: "substack", Title: "Writing that converts", URL: "https://example.com/write", QualityScore: 0.76},
			},
		},
		clock: time.Now,
	}
}

func (c *Catalog) TopSources(_ context.Context, n int) ([]string, error) {
	out := make([]string, 0, len(c.sources))
	for name := range c.sources {
		out = append(out, name)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func (c *Catalog) Scrape(_ context.Context, source string, limit int) ([]domain.ContentItem, error) {
	items, ok := c.sources[source]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", source)
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	now := c.clock().UTC()
	out := make([]domain.ContentItem, len(items))
	for i, item := range items {
		item.ID = uuid.New()
		item.ScrapedAt = now
		out[i] = item
	}
	return out, nil
}

func (c *Catalog) QualityScore(_ context.Context, item domain.ContentItem) (float64, error) {
	return item.QualityScore, nil
}

// Generator produces deterministic placeholder drafts.
type Generator struct{}

func NewGenerator() *Generator { return &Generator{} }

func (g *Generator) Generate(_ context.Context, prompt string) (domain.GenerationResult, error) {
	text := fmt.Sprintf("[draft] %s", prompt)
	return domain.GenerationResult{Text: text, Model: "stub-1"}, nil
}

// ContentStore keeps items and drafts in memory.
type ContentStore struct {
	mu     sync.Mutex
	items  []domain.ContentItem
	drafts map[uuid.UUID]domain.Draft
}

func NewContentStore() *ContentStore {
	return &ContentStore{drafts: make(map[uuid.UUID]domain.Draft)}
}

func (s *ContentStore) SaveItem(_ context.Context, item domain.ContentItem) error {
	s.mu.Lock()
	s.items = append(s.items, item)
	s.mu.Unlock()
	return nil
}

func (s *ContentStore) CreateDraft(_ context.Context, draft domain.Draft) error {
	s.mu.Lock()
	s.drafts[draft.ID] = draft
	s.mu.Unlock()
	return nil
}

func (s *ContentStore) ListDraftsByClient(_ context.Context, clientID uuid.UUID) ([]domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Draft
	for _, d := range s.drafts {
		if d.ClientID == clientID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *ContentStore) Approve(_ context.Context, draftID uuid.UUID, approver, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, ok := s.drafts[draftID]
	if !ok {
		return domain.ErrNotFound
	}
	draft.Status = domain.DraftStatusApproved
	s.drafts[draftID] = draft
	log.Printf("collab: draft=%s approved by %s (%s)", draftID, approver, note)
	return nil
}

// Items returns a copy of the saved items, for tests.
func (s *ContentStore) Items() []domain.ContentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ContentItem(nil), s.items...)
}

// Drafts returns a copy of the stored drafts, for tests.
func (s *ContentStore) Drafts() []domain.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		out = append(out, d)
	}
	return out
}

// Publisher records scheduled posts in memory.
type Publisher struct {
	mu    sync.Mutex
	posts []domain.ScheduledPost
}

func NewPublisher() *Publisher { return &Publisher{} }

func (p *Publisher) Schedule(_ context.Context, contentID, clientID uuid.UUID, at time.Time, platform string) (domain.ScheduledPost, error) {
	post := domain.ScheduledPost{
		ID:          uuid.New(),
		ContentID:   contentID,
		ClientID:    clientID,
		Platform:    platform,
		ScheduledAt: at,
	}
	p.mu.Lock()
	p.posts = append(p.posts, post)
	p.mu.Unlock()
	return post, nil
}

// Posts returns a copy of the scheduled posts, for tests.
func (p *Publisher) Posts() []domain.ScheduledPost {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ScheduledPost(nil), p.posts...)
}

// Notifier logs messages instead of delivering them.
type Notifier struct {
	mu       sync.Mutex
	messages []string
}

func NewNotifier() *Notifier { return &Notifier{} }

func (n *Notifier) Send(_ context.Context, message string, recipients []string) error {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
	log.Printf("collab: notify %d recipients: %s", len(recipients), message)
	return nil
}

// Messages returns a copy of the sent messages, for tests.
func (n *Notifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// TrendingFeed serves a fixed set of trending topics.
type TrendingFeed struct {
	mu    sync.Mutex
	items []domain.TrendingItem
}

func NewTrendingFeed(items ...domain.TrendingItem) *TrendingFeed {
	return &TrendingFeed{items: items}
}

func (f *TrendingFeed) GetTrending(_ context.Context, limit int) ([]domain.TrendingItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := f.items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return append([]domain.TrendingItem(nil), items...), nil
}

// SetItems replaces the feed contents.
func (f *TrendingFeed) SetItems(items []domain.TrendingItem) {
	f.mu.Lock()
	f.items = items
	f.mu.Unlock()
}
