package version

// Version is the current version of the videocall binary.
// Override at build time with:
//
//	go build -ldflags="-X 'github.com/Ajit127639/VideoCall/internal/version.Version=v1.0.0'"
var Version = "dev"
