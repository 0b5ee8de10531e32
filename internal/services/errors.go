package services

import "errors"

var (
	// ErrStateInvalid covers unknown, already-consumed, and wrong-kind
	// OAuth state tokens. The second callback with a replayed token gets
	// exactly this.
	ErrStateInvalid = errors.New("oauth state is invalid or already used")

	// ErrStateExpired means the callback arrived after the state row's TTL.
	// The row is gone either way; the user has to start the flow over.
	ErrStateExpired = errors.New("oauth state expired")

	// ErrMembershipDenied is a confirmed business negative: the Discord
	// account exists but is not in the tenant's server. Distinct from
	// transport failure and never treated as success.
	ErrMembershipDenied = errors.New("not a member of the community")

	// ErrNoGuildConnected means a tenant-scoped link was attempted before
	// the tenant connected any Discord server.
	ErrNoGuildConnected = errors.New("no community connected")

	// ErrIntegrationDisabled means the tenant switched the integration off.
	ErrIntegrationDisabled = errors.New("discord integration is disabled")
)
