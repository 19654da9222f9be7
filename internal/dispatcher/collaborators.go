package dispatcher

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/draftwell/autopilot/internal/domain"
)

// Collaborator names used for circuit breaker keys and metrics labels.
const (
	CollabClients   = "clients"
	CollabCatalog   = "catalog"
	CollabGenerator = "generator"
	CollabContent   = "content"
	CollabPublisher = "publisher"
	CollabNotifier  = "notifier"
)

// ClientDirectory lists the content clients the engine works for.
type ClientDirectory interface {
	GetAll(ctx context.Context) ([]domain.Client, error)
	GetActive(ctx context.Context) ([]domain.Client, error)
}

// ContentSourceCatalog knows where to scrape from and how good the results are.
type ContentSourceCatalog interface {
	TopSources(ctx context.Context, n int) ([]string, error)
	Scrape(ctx context.Context, source string, limit int) ([]domain.ContentItem, error)
	QualityScore(ctx context.Context, item domain.ContentItem) (float64, error)
}

// ContentGenerator produces draft text for a prompt.
type ContentGenerator interface {
	Generate(ctx context.Context, prompt string) (domain.GenerationResult, error)
}

// ContentStore persists scraped items and drafts and transitions approvals.
type ContentStore interface {
	SaveItem(ctx context.Context, item domain.ContentItem) error
	CreateDraft(ctx context.Context, draft domain.Draft) error
	ListDraftsByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Draft, error)
	Approve(ctx context.Context, draftID uuid.UUID, approver, note string) error
}

// SchedulingPublisher registers approved content on the publishing calendar.
type SchedulingPublisher interface {
	Schedule(ctx context.Context, contentID, clientID uuid.UUID, at time.Time, platform string) (domain.ScheduledPost, error)
}

// Notifier delivers a message to the content team.
type Notifier interface {
	Send(ctx context.Context, message string, recipients []string) error
}

// Collaborators bundles the external systems handlers dispatch against.
type Collaborators struct {
	Clients   ClientDirectory
	Catalog   ContentSourceCatalog
	Generator ContentGenerator
	Content   ContentStore
	Publisher SchedulingPublisher
	Notifier  Notifier
}
