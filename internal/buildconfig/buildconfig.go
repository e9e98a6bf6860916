// Package buildconfig holds version metadata stamped at link time:
//
//	go build -ldflags "-X github.com/Harshitk-cp/synapse/internal/buildconfig.version=v0.4.0 \
//	    -X github.com/Harshitk-cp/synapse/internal/buildconfig.commit=$(git rev-parse --short HEAD)"
package buildconfig

import "go.uber.org/zap"

var (
	version = "dev"
	commit  = "unknown"
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// LogFields returns the build metadata as structured log fields.
func LogFields() []zap.Field {
	return []zap.Field{
		zap.String("version", version),
		zap.String("commit", commit),
	}
}
