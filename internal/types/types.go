package types

// Capture is a single frame frozen from the live stream and encoded for upload
type Capture struct {
	Data   []byte // JPEG bytes
	Width  int
	Height int
}

// Result is what came back from the server for one submission.
// The body schema is owned by the server, so it is kept opaque.
type Result struct {
	StatusCode int
	Body       any    // Decoded JSON value
	Text       string // Compact re-encoding of Body, shown to the user as-is
}

// ErrorResult captures the error object the server returns on rejection
type ErrorResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
