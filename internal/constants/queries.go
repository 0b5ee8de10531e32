package constants

const (
	InsertOAuthState = `
	INSERT INTO oauth_states (state, kind, org_id, user_id, verifier, return_to, callback_path, created_at)
	VALUES (:state, :kind, :org_id, :user_id, :verifier, :return_to, :callback_path, :created_at)
	`

	// Delete-on-read keeps Consume atomic under concurrent callbacks.
	// Queries use ? placeholders and are rebound per driver.
	ConsumeOAuthState = `
	DELETE FROM oauth_states WHERE state = ?
	RETURNING state, kind, org_id, user_id, verifier, return_to, callback_path, created_at
	`

	DeleteExpiredOAuthStates = `
	DELETE FROM oauth_states WHERE created_at < ?
	`

	GetStatusByApiKey = `
	SELECT id, status FROM api_keys WHERE id = ?
	`
)
