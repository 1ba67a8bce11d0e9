// Package version holds the build stamp of rollsurvey. Release builds set
// the variables with
//
//	go build -ldflags "-X github.com/banshee-data/roll.survey/internal/version.Version=v0.3.0 \
//	  -X github.com/banshee-data/roll.survey/internal/version.GitSHA=$(git rev-parse --short HEAD) \
//	  -X github.com/banshee-data/roll.survey/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	  ./cmd/rollsurvey
package version

import "fmt"

var (
	// Version of rollsurvey; "dev" for local builds.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// String formats the build stamp for a -version flag, e.g.
// "rollsurvey v0.3.0 (1a2b3c4, built 2024-05-01T10:00:00Z)". A build
// without a commit prints the version alone.
func String(program string) string {
	if GitSHA == "" || GitSHA == "unknown" {
		return fmt.Sprintf("%s %s", program, Version)
	}
	return fmt.Sprintf("%s %s (%s, built %s)", program, Version, GitSHA, BuildTime)
}
