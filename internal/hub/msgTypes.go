package hub

const (
	ServerDeleted  = "ServerDeleted"
	ServerModified = "ServerModified"

	MemberJoined = "MemberJoined"
	MemberLeft   = "MemberLeft"

	ChannelCreated  = "ChannelCreated"
	ChannelDeleted  = "ChannelDeleted"
	ChannelModified = "ChannelModified"

	MessageCreated  = "MessageCreated"
	MessageDeleted  = "MessageDeleted"
	MessageModified = "MessageModified"

	// replies to client frames
	Subscribed   = "Subscribed"
	Unsubscribed = "Unsubscribed"
	Error        = "Error"
)
