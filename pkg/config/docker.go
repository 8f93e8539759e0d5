package config

import (
	"os"
	"sync"
)

var detectDocker = sync.OnceValue(func() bool {
	// /.dockerenv exists in every Docker container.
	_, err := os.Stat("/.dockerenv")
	return err == nil
})

// IsRunningInDocker reports whether the process runs inside a Docker
// container. The check is performed once and cached.
func IsRunningInDocker() bool {
	return detectDocker()
}

// ResolveHostForDocker rewrites localhost addresses to host.docker.internal
// when running inside Docker, so Postgres or Redis on the host machine stay
// reachable. Any other host is returned unchanged.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1":
		return "host.docker.internal"
	}
	return host
}
