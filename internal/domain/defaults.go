package domain

import "github.com/google/uuid"

// Default rule IDs are fixed so seeding is idempotent across restarts.
var (
	defaultScrapeRuleID   = uuid.MustParse("5f8a1c3e-0001-4b6e-9c1a-6d2f4e8a1b01")
	defaultGenerateRuleID = uuid.MustParse("5f8a1c3e-0002-4b6e-9c1a-6d2f4e8a1b02")
	defaultApproveRuleID  = uuid.MustParse("5f8a1c3e-0003-4b6e-9c1a-6d2f4e8a1b03")
	defaultPublishRuleID  = uuid.MustParse("5f8a1c3e-0004-4b6e-9c1a-6d2f4e8a1b04")
	defaultQueueLowRuleID = uuid.MustParse("5f8a1c3e-0005-4b6e-9c1a-6d2f4e8a1b05")
	defaultReportRuleID   = uuid.MustParse("5f8a1c3e-0006-4b6e-9c1a-6d2f4e8a1b06")
)

// DefaultRules returns the rule set seeded at startup: a daily content
// pipeline (scrape, generate, approve, publish), a queue-low refill rule,
// and a weekly report notification.
func DefaultRules() []AutomationRule {
	monday := 1
	return []AutomationRule{
		{
			ID:          defaultScrapeRuleID,
			Name:        "Daily content scrape",
			Description: "Pull fresh source material from the top content sources every morning.",
			TriggerType: TriggerTypeSchedule,
			Trigger: TriggerConfig{Schedule: &ScheduleTrigger{
				Frequency: FrequencyDaily,
				Time:      "06:00",
			}},
			ActionType: ActionTypeScrape,
			Action: ActionConfig{Scrape: &ScrapeAction{
				Limit:           20,
				MinQualityScore: 0.6,
			}},
			Active:    true,
			CreatedBy: "system",
		},
		{
			ID:          defaultGenerateRuleID,
			Name:        "Daily draft generation",
			Description: "Generate draft content for every active client.",
			TriggerType: TriggerTypeSchedule,
			Trigger: TriggerConfig{Schedule: &ScheduleTrigger{
				Frequency: FrequencyDaily,
				Time:      "07:00",
			}},
			ActionType: ActionTypeGenerate,
			Action: ActionConfig{Generate: &GenerateAction{
				Count: 3,
			}},
			Active:    true,
			CreatedBy: "system",
		},
		{
			ID:          defaultApproveRuleID,
			Name:        "Auto-approve high scoring drafts",
			Description: "Approve drafts scoring above the quality bar without manual review.",
			TriggerType: TriggerTypeSchedule,
			Trigger: TriggerConfig{Schedule: &ScheduleTrigger{
				Frequency: FrequencyDaily,
				Time:      "08:00",
			}},
			ActionType: ActionTypeApprove,
			Action: ActionConfig{Approve: &ApproveAction{
				AutoApproveThreshold: 0.85,
				RequiresManualReview: false,
			}},
			Active:    true,
			CreatedBy: "system",
		},
		{
			ID:          defaultPublishRuleID,
			Name:        "Daily publish scheduling",
			Description: "Queue approved content onto the publishing calendar.",
			TriggerType: TriggerTypeSchedule,
			Trigger: TriggerConfig{Schedule: &ScheduleTrigger{
				Frequency: FrequencyDaily,
				Time:      "09:00",
			}},
			ActionType: ActionTypePublish,
			Action: ActionConfig{Publish: &PublishAction{
				Platform:           "linkedin",
				ScheduleAheadHours: 24,
			}},
			Active:    true,
			CreatedBy: "system",
		},
		{
			ID:          defaultQueueLowRuleID,
			Name:        "Refill low content queues",
			Description: "Generate drafts for clients whose scheduled queue runs low.",
			TriggerType: TriggerTypeEvent,
			Trigger: TriggerConfig{Event: &EventTrigger{
				Event:     EventQueueLow,
				Threshold: 3,
			}},
			ActionType: ActionTypeGenerate,
			Action: ActionConfig{Generate: &GenerateAction{
				Count: 2,
			}},
			Active:    true,
			CreatedBy: "system",
		},
		{
			ID:          defaultReportRuleID,
			Name:        "Weekly operations report",
			Description: "Send the weekly automation summary to the content team.",
			TriggerType: TriggerTypeSchedule,
			Trigger: TriggerConfig{Schedule: &ScheduleTrigger{
				Frequency: FrequencyWeekly,
				Time:      "09:00",
				DayOfWeek: &monday,
			}},
			ActionType: ActionTypeNotify,
			Action: ActionConfig{Notify: &NotifyAction{
				Channel:    "email",
				Recipients: []string{"content-ops@draftwell.io"},
				Message:    "Weekly automation report is ready.",
			}},
			Active:    true,
			CreatedBy: "system",
		},
	}
}
