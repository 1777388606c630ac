package app

const ServiceName = "school-directory"

// Set via -ldflags during build:
//
//	go build -ldflags="-X 'school-directory/internal/app.Version=1.0.0'" ./cmd/server
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
