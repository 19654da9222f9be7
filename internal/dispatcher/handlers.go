package dispatcher

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/draftwell/autopilot/internal/domain"
)

const (
	defaultScrapeLimit   = 10
	defaultTopSources    = 5
	scrapeBatchSize      = 5
	defaultGenerateCount = 1
)

// handleScrape pulls items from the configured sources (or the catalog's top
// sources), scores them, and persists the ones above the quality floor.
// Sources are scraped in bounded batches with a pause between batches so a
// long source list does not hammer the catalog.
func (d *Dispatcher) handleScrape(ctx context.Context, rule domain.AutomationRule) handlerResult {
	cfg := rule.Action.Scrape
	if cfg == nil {
		return handlerResult{Err: fmt.Errorf("scrape action config missing")}
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultScrapeLimit
	}

	sources := cfg.Sources
	if len(sources) == 0 {
		err := d.call(ctx, CollabCatalog, func(ctx context.Context) error {
			var err error
			sources, err = d.collabs.Catalog.TopSources(ctx, defaultTopSources)
			return err
		})
		if err != nil {
			return handlerResult{Err: err}
		}
	}

	var accepted []string
	failed := 0

	for batchStart := 0; batchStart < len(sources); batchStart += scrapeBatchSize {
		if batchStart > 0 && d.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return handlerResult{Err: ctx.Err()}
			case <-time.After(d.batchDelay):
			}
		}

		batchEnd := batchStart + scrapeBatchSize
		if batchEnd > len(sources) {
			batchEnd = len(sources)
		}

		for _, source := range sources[batchStart:batchEnd] {
			items, err := d.scrapeSource(ctx, source, limit, cfg.MinQualityScore)
			if err != nil {
				log.Printf("dispatcher: scrape source=%s failed: %v", source, err)
				failed++
				continue
			}
			accepted = append(accepted, items...)
		}
	}

	if len(accepted) == 0 && failed == len(sources) && failed > 0 {
		return handlerResult{Err: fmt.Errorf("all %d sources failed", failed)}
	}

	return handlerResult{
		Details: map[string]any{"items": accepted, "sources": len(sources)},
		Items:   len(accepted),
		Failed:  failed,
	}
}

func (d *Dispatcher) scrapeSource(ctx context.Context, source string, limit int, minScore float64) ([]string, error) {
	var items []domain.ContentItem
	err := d.call(ctx, CollabCatalog, func(ctx context.Context) error {
		var err error
		items, err = d.collabs.Catalog.Scrape(ctx, source, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	var accepted []string
	for _, item := range items {
		score := item.QualityScore
		if score == 0 {
			if err := d.call(ctx, CollabCatalog, func(ctx context.Context) error {
				var err error
				score, err = d.collabs.Catalog.QualityScore(ctx, item)
				return err
			}); err != nil {
				return nil, err
			}
		}
		if score < minScore {
			continue
		}
		item.QualityScore = score
		if err := d.call(ctx, CollabContent, func(ctx context.Context) error {
			return d.collabs.Content.SaveItem(ctx, item)
		}); err != nil {
			return nil, err
		}
		accepted = append(accepted, item.Title)
	}
	return accepted, nil
}

// handleGenerate produces drafts for the targeted client, or every active
// client when the event carries no client scope.
func (d *Dispatcher) handleGenerate(ctx context.Context, rule domain.AutomationRule, event domain.TriggerEvent) handlerResult {
	cfg := rule.Action.Generate
	if cfg == nil {
		return handlerResult{Err: fmt.Errorf("generate action config missing")}
	}

	count := cfg.Count
	if count <= 0 {
		count = defaultGenerateCount
	}

	clients, err := d.targetClients(ctx, rule, event)
	if err != nil {
		return handlerResult{Err: err}
	}

	var generated []string
	failed := 0

	for _, client := range clients {
		prompt := buildPrompt(client, cfg.Template, event)

		ok := 0
		for i := 0; i < count; i++ {
			var res domain.GenerationResult
			err := d.call(ctx, CollabGenerator, func(ctx context.Context) error {
				var err error
				res, err = d.collabs.Generator.Generate(ctx, prompt)
				return err
			})
			if err != nil {
				log.Printf("dispatcher: generate client=%s failed: %v", client.ID, err)
				continue
			}

			draft := domain.Draft{
				ID:        uuid.New(),
				ClientID:  client.ID,
				Body:      res.Text,
				Model:     res.Model,
				Status:    domain.DraftStatusDraft,
				CreatedAt: d.clock().UTC(),
			}
			if err := d.call(ctx, CollabContent, func(ctx context.Context) error {
				return d.collabs.Content.CreateDraft(ctx, draft)
			}); err != nil {
				log.Printf("dispatcher: persist draft client=%s failed: %v", client.ID, err)
				continue
			}
			generated = append(generated, draft.ID.String())
			ok++
		}
		if ok < count {
			failed++
		}
	}

	if len(generated) == 0 && len(clients) > 0 {
		return handlerResult{Err: fmt.Errorf("generation failed for all %d clients", len(clients))}
	}

	return handlerResult{
		Details: map[string]any{"generated": generated, "clients": len(clients)},
		Items:   len(generated),
		Failed:  failed,
	}
}

// handleApprove transitions drafts to approved when their quality score meets
// the configured threshold and the rule allows skipping manual review.
func (d *Dispatcher) handleApprove(ctx context.Context, rule domain.AutomationRule, event domain.TriggerEvent) handlerResult {
	cfg := rule.Action.Approve
	if cfg == nil {
		return handlerResult{Err: fmt.Errorf("approve action config missing")}
	}

	if cfg.RequiresManualReview {
		return handlerResult{
			Details: map[string]any{"approved": []string{}, "reason": "manual review required"},
		}
	}

	clients, err := d.targetClients(ctx, rule, event)
	if err != nil {
		return handlerResult{Err: err}
	}

	var approved []string
	failed := 0

	for _, client := range clients {
		var drafts []domain.Draft
		err := d.call(ctx, CollabContent, func(ctx context.Context) error {
			var err error
			drafts, err = d.collabs.Content.ListDraftsByClient(ctx, client.ID)
			return err
		})
		if err != nil {
			log.Printf("dispatcher: list drafts client=%s failed: %v", client.ID, err)
			failed++
			continue
		}

		for _, draft := range drafts {
			if draft.Status != domain.DraftStatusDraft || draft.QualityScore < cfg.AutoApproveThreshold {
				continue
			}
			note := fmt.Sprintf("auto-approved: score %.2f >= %.2f", draft.QualityScore, cfg.AutoApproveThreshold)
			if err := d.call(ctx, CollabContent, func(ctx context.Context) error {
				return d.collabs.Content.Approve(ctx, draft.ID, "autopilot", note)
			}); err != nil {
				log.Printf("dispatcher: approve draft=%s failed: %v", draft.ID, err)
				failed++
				continue
			}
			approved = append(approved, draft.ID.String())
		}
	}

	return handlerResult{
		Details: map[string]any{"approved": approved},
		Items:   len(approved),
		Failed:  failed,
	}
}

// handlePublish registers approved content on the publishing calendar at
// now + schedule_ahead_hours. Items come from the event context when present
// (a chained approval), otherwise every approved draft of the target clients.
func (d *Dispatcher) handlePublish(ctx context.Context, rule domain.AutomationRule, event domain.TriggerEvent) handlerResult {
	cfg := rule.Action.Publish
	if cfg == nil {
		return handlerResult{Err: fmt.Errorf("publish action config missing")}
	}

	publishAt := d.clock().UTC().Add(time.Duration(cfg.ScheduleAheadHours) * time.Hour)

	drafts, err := d.publishTargets(ctx, rule, event)
	if err != nil {
		return handlerResult{Err: err}
	}

	var scheduled []string
	failed := 0

	for _, draft := range drafts {
		var post domain.ScheduledPost
		err := d.call(ctx, CollabPublisher, func(ctx context.Context) error {
			var err error
			post, err = d.collabs.Publisher.Schedule(ctx, draft.ID, draft.ClientID, publishAt, cfg.Platform)
			return err
		})
		if err != nil {
			log.Printf("dispatcher: schedule draft=%s failed: %v", draft.ID, err)
			failed++
			continue
		}
		scheduled = append(scheduled, post.ID.String())
	}

	return handlerResult{
		Details: map[string]any{"scheduled": scheduled, "publish_at": publishAt.Format(time.RFC3339)},
		Items:   len(scheduled),
		Failed:  failed,
	}
}

// handleNotify formats and sends one message. Items processed is always 1.
func (d *Dispatcher) handleNotify(ctx context.Context, rule domain.AutomationRule, event domain.TriggerEvent) handlerResult {
	cfg := rule.Action.Notify
	if cfg == nil {
		return handlerResult{Err: fmt.Errorf("notify action config missing")}
	}

	message := cfg.Message
	if ctxMsg, ok := event.Context[domain.ContextKeyMessage].(string); ok && ctxMsg != "" {
		message = ctxMsg
	}
	if qs, ok := event.Context[domain.ContextKeyQueueSize]; ok {
		message = fmt.Sprintf("%s (queue size: %v)", message, qs)
	}

	err := d.call(ctx, CollabNotifier, func(ctx context.Context) error {
		return d.collabs.Notifier.Send(ctx, message, cfg.Recipients)
	})
	if err != nil {
		return handlerResult{Err: err}
	}

	return handlerResult{
		Details: map[string]any{"channel": cfg.Channel, "recipients": len(cfg.Recipients)},
		Items:   1,
	}
}

// targetClients resolves which clients an execution applies to: the event's
// client scope, the rule's own client scope, or all active clients.
func (d *Dispatcher) targetClients(ctx context.Context, rule domain.AutomationRule, event domain.TriggerEvent) ([]domain.Client, error) {
	var clients []domain.Client
	err := d.call(ctx, CollabClients, func(ctx context.Context) error {
		var err error
		clients, err = d.collabs.Clients.GetActive(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	scope := rule.ClientID
	if raw, ok := event.Context[domain.ContextKeyClientID].(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			scope = &id
		}
	}
	if scope == nil {
		return clients, nil
	}

	for _, c := range clients {
		if c.ID == *scope {
			return []domain.Client{c}, nil
		}
	}
	return nil, nil
}

func (d *Dispatcher) publishTargets(ctx context.Context, rule domain.AutomationRule, event domain.TriggerEvent) ([]domain.Draft, error) {
	if raw, ok := event.Context[domain.ContextKeyApproved].([]domain.Draft); ok && len(raw) > 0 {
		return raw, nil
	}

	clients, err := d.targetClients(ctx, rule, event)
	if err != nil {
		return nil, err
	}

	var approved []domain.Draft
	for _, client := range clients {
		var drafts []domain.Draft
		err := d.call(ctx, CollabContent, func(ctx context.Context) error {
			var err error
			drafts, err = d.collabs.Content.ListDraftsByClient(ctx, client.ID)
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, draft := range drafts {
			if draft.Status == domain.DraftStatusApproved {
				approved = append(approved, draft)
			}
		}
	}
	return approved, nil
}

// buildPrompt composes the generation prompt from the client profile, an
// optional template, and any trending topics the event carried.
func buildPrompt(client domain.Client, template string, event domain.TriggerEvent) string {
	var b strings.Builder

	if template != "" {
		b.WriteString(template)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Write a post for %s", client.Name)
	if client.Industry != "" {
		fmt.Fprintf(&b, " in the %s industry", client.Industry)
	}
	if client.Voice != "" {
		fmt.Fprintf(&b, ", in a %s voice", client.Voice)
	}
	b.WriteString(".")

	if items, ok := event.Context[domain.ContextKeyItems].([]domain.TrendingItem); ok && len(items) > 0 {
		b.WriteString(" Reference the trending topic: ")
		b.WriteString(items[0].Topic)
		b.WriteString(".")
	}

	return b.String()
}
