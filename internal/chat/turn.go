package chat

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one exchange entry in a user's conversation with the assistant.
type Turn struct {
	Role Role
	Text string
}
