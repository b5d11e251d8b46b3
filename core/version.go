package core

// Build metadata, injected with
//
//	go build -ldflags "-X t2i_backend/core.Version=v1.2.0 -X t2i_backend/core.GitCommit=$(git rev-parse --short HEAD)"
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GetVersionInfo formats the build metadata.
func GetVersionInfo() string {
	return Version + " (built " + BuildTime + ", commit " + GitCommit + ")"
}
