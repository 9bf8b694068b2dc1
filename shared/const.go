package shared

const (
	UserID        = "user_id"
	Authenticated = "authenticated"

	// Rate limit endpoint classes
	EndpointGeneral = "general"
	EndpointAuth    = "auth"
	EndpointReview  = "review"
	EndpointReply   = "reply"
	EndpointUpload  = "upload"

	// Review moderation states
	ModerationPending  = "pending"
	ModerationApproved = "approved"
	ModerationSpam     = "spam"

	// Application listing states
	AppStatusPending  = "pending"
	AppStatusApproved = "approved"
	AppStatusRejected = "rejected"
)
