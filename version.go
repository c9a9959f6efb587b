package lazytl

// Version information for lazytl.
// These values can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/ZaguanLabs/lazytl.GitCommit=$(git rev-parse HEAD)"
const (
	// Name is the application name; it also names the tracer.
	Name = "lazytl"

	// Description is a short description of the application.
	Description = "Lazy translation cache for CMS content"

	// Version is the semantic version of the application.
	Version = "0.3.0"

	// Repository is the source code repository URL.
	Repository = "https://github.com/ZaguanLabs/lazytl"
)

// BuildInfo contains build-time information set via ldflags.
var (
	// GitCommit is the git commit hash.
	GitCommit = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// FullVersion returns the version string with the short commit appended
// when known.
func FullVersion() string {
	v := Version
	if GitCommit != "unknown" && GitCommit != "" {
		short := GitCommit
		if len(short) > 7 {
			short = short[:7]
		}
		v += "+" + short
	}
	return v
}

// UserAgent returns a user agent string for provider HTTP requests.
func UserAgent() string {
	return Name + "/" + Version
}
