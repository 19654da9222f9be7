package postgres

const ruleColumns = `
    id, name, description, client_id,
    trigger_type, trigger_config, action_type, action_config,
    active, last_run_at, next_run_at, created_by,
    created_at, updated_at`

const queryListRules = `
SELECT` + ruleColumns + `
FROM automation_rules
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`

const queryListActiveRules = `
SELECT` + ruleColumns + `
FROM automation_rules
WHERE active = true
ORDER BY created_at
`

const queryGetRule = `
SELECT` + ruleColumns + `
FROM automation_rules
WHERE id = $1
`

const queryInsertRule = `
INSERT INTO automation_rules (
    id, name, description, client_id,
    trigger_type, trigger_config, action_type, action_config,
    active, last_run_at, next_run_at, created_by,
    created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`

const queryInsertRuleIfAbsent = queryInsertRule + `
ON CONFLICT (id) DO NOTHING
`

const queryUpdateRule = `
UPDATE automation_rules
SET name = $2,
    description = $3,
    client_id = $4,
    trigger_type = $5,
    trigger_config = $6,
    action_type = $7,
    action_config = $8,
    active = $9,
    updated_at = $10
WHERE id = $1
RETURNING id
`

// Admin-only hard delete. Execution logs are append-only in every engine
// path; they go with the rule here because execution_logs.rule_id would
// otherwise dangle. Retiring a rule while keeping history is SetRuleActive.
const queryDeleteRule = `
WITH deleted_logs AS (
    DELETE FROM execution_logs WHERE rule_id = $1
)
DELETE FROM automation_rules WHERE id = $1
RETURNING id
`

const querySetRuleActive = `
UPDATE automation_rules
SET active = $2, updated_at = $3
WHERE id = $1
RETURNING id
`

const queryTouchRuleRun = `
UPDATE automation_rules
SET last_run_at = GREATEST(COALESCE(last_run_at, 'epoch'::timestamptz), $2),
    updated_at = $3
WHERE id = $1
RETURNING id
`

const queryInsertExecutionLog = `
INSERT INTO execution_logs (
    id, rule_id, status, details, error_message,
    items_processed, execution_time_ms, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

const logColumns = `
    id, rule_id, status, details, error_message,
    items_processed, execution_time_ms, created_at`

const queryListExecutionLogs = `
SELECT` + logColumns + `
FROM execution_logs
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`

const queryListExecutionLogsByRule = `
SELECT` + logColumns + `
FROM execution_logs
WHERE rule_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

const queryCountScheduledPosts = `
SELECT COUNT(*)
FROM scheduled_posts
WHERE client_id = $1
  AND scheduled_at > NOW()
`
