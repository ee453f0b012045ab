package gemini

// API path constants for the Gemini Code Assist endpoint.

const (
	// PathGenerate is the endpoint for non-streaming generation.
	PathGenerate = "/v1internal:generateContent"

	// PathStreamGenerate is the endpoint for streaming generation. The
	// alt=sse query selects the event-stream response format.
	PathStreamGenerate = "/v1internal:streamGenerateContent?alt=sse"
)
