package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
)

// Upstream stage endpoints, relative to the chatbot stream URL.
const (
	StreamEndpointDatabase = "/stream-db"
	StreamEndpointVector   = "/stream-vector"
	StreamEndpointWeb      = "/stream-web"
	StreamEndpointSummary  = "/stream-summary"
)

// Toast shown when a turn is aborted.
const TurnFailedMessage = "Failed to process request"

// Languages the upstream prompts are written for.
var SupportedLanguages = []string{"English", "Hindi", "Spanish", "French", "German"}
