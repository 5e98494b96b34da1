package server

// Config holds the HTTP surface settings.
type Config struct {
	ListenAddr    string
	MaxConcurrent int
	// MaxUploadMB caps the request body, image included.
	MaxUploadMB int
}
