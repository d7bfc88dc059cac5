package apperr

var (
	ErrUnauthenticated        = Unauthenticated("you must be signed in")
	ErrNotWorkspaceMember     = NotAMember("you are not a member of this workspace")
	ErrNotChannelMember       = NotAMember("you are not a member of this channel")
	ErrChannelNotFound        = NotFound("channel not found")
	ErrWorkspaceNotFound      = NotFound("workspace not found")
	ErrMessageNotFound        = NotFound("message not found")
	ErrConversationNotFound   = NotFound("conversation not found")
	ErrUserNotFound           = NotFound("user not found")
	ErrInvalidOrExpiredInvite = New(CodeInvalidOrExpiredInvite, "invite is invalid or has expired")
	ErrAlreadyMember          = New(CodeAlreadyMember, "you are already a member of this workspace")
	ErrCannotChangeOwnerRole  = InvalidOperation("Cannot change owner role")
)
