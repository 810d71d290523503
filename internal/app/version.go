package app

// Build-time variables set via -ldflags. For example:
//
//	go build -ldflags "-X github.com/large-farva/scopelink/internal/app.Version=v1.0.0"
var (
	Version = "dev"
	BuiltAt = "unknown"
)
