package domain

type ChatRole string

const (
	RoleSystem ChatRole = "system"
	RoleUser   ChatRole = "user"
)

// ChatMessage is one turn of a generative-text request. The service response
// is raw text; callers parse and validate it themselves.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}
