package domain

import (
	"time"

	"github.com/google/uuid"
)

// Client is a content client the engine generates and schedules for.
type Client struct {
	ID       uuid.UUID
	Name     string
	Industry string
	Voice    string // preferred writing voice, fed into generation prompts
	Active   bool
}

// ContentItem is a scraped piece of source material.
type ContentItem struct {
	ID           uuid.UUID
	Source       string
	Title        string
	URL          string
	QualityScore float64
	ScrapedAt    time.Time
}

// TrendingItem is a candidate topic surfaced by the trending feed.
type TrendingItem struct {
	Topic string  `json:"topic"`
	URL   string  `json:"url,omitempty"`
	Score float64 `json:"score"`
}

type DraftStatus string

const (
	DraftStatusDraft    DraftStatus = "draft"
	DraftStatusApproved DraftStatus = "approved"
)

// Draft is a generated piece of content awaiting approval.
type Draft struct {
	ID           uuid.UUID
	ClientID     uuid.UUID
	Body         string
	Model        string
	QualityScore float64
	Status       DraftStatus
	CreatedAt    time.Time
}

// ScheduledPost is an approved draft registered with the publisher.
type ScheduledPost struct {
	ID          uuid.UUID
	ContentID   uuid.UUID
	ClientID    uuid.UUID
	Platform    string
	ScheduledAt time.Time
}

// GenerationResult is what the content generator returns for one prompt.
type GenerationResult struct {
	Text  string
	Model string
}
