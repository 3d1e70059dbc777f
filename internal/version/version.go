package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// ToolName is the name recorded in project and run metadata documents.
const ToolName = "Confinement"

// String renders the build identity for --version output and metadata.
func String() string {
	if GitSHA == "unknown" || GitSHA == "" {
		return Version
	}
	sha := GitSHA
	if len(sha) > 7 {
		sha = sha[:7]
	}
	return fmt.Sprintf("%s (%s)", Version, sha)
}
