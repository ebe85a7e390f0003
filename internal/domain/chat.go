package domain

// ChatMessage is the provider-agnostic chat message shape shared by the
// dialogue engine and the text-generation integration.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is a single persisted user/assistant exchange within a session.
type Turn struct {
	PK        string
	SK        string
	SessionID string
	Text      string
	Reply     string
	TTL       int64
}

// GeneratedReply is the tagged result of a remote generation call. A reply is
// either structured (candidate 5-line message suggestions) or free text;
// callers must never assume one shape.
type GeneratedReply struct {
	Suggestions [][]string
	Text        string
}

// Structured reports whether the reply carries parsed message suggestions.
func (r GeneratedReply) Structured() bool {
	return len(r.Suggestions) > 0
}
