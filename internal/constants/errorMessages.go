package constants

const (
	StatusError           = "Error"
	StatusLinkComplete    = "Discord account linked"
	StatusInstallComplete = "Guild connected"
	StatusStateInvalid    = "Link session is invalid or was already used"
	StatusStateExpired    = "Link session expired, please start again"
	StatusNotAMember      = "Not a member of the community"
	StatusExchangeFailed  = "Discord rejected the authorization code"
	StatusConfigMissing   = "Discord integration is not configured"
)

const (
	MsgJoinCommunityFirst = "Please join the community's Discord server first, then link again"
	MsgNoGuildConnected   = "No Discord server is connected for this account"
	MsgDuplicateCallback  = "This link was already completed or the session expired"
)
