package config

import (
	"testing"
)

func TestResolveHostForDocker_RemoteHostsUnchanged(t *testing.T) {
	// Non-localhost hosts must never be rewritten, regardless of whether
	// the test itself runs in a container.
	hosts := []string{
		"db.example.com",
		"192.168.1.100",
		"host.docker.internal",
		"10.0.0.5",
	}

	for _, host := range hosts {
		if got := ResolveHostForDocker(host); got != host {
			t.Errorf("ResolveHostForDocker(%q) = %q, want unchanged", host, got)
		}
	}
}

func TestResolveHostForDocker_LocalhostVariants(t *testing.T) {
	// The rewrite only happens inside a container, so the expectation
	// depends on the test environment.
	for _, host := range []string{"localhost", "127.0.0.1"} {
		got := ResolveHostForDocker(host)
		if IsRunningInDocker() {
			if got != "host.docker.internal" {
				t.Errorf("ResolveHostForDocker(%q) in Docker = %q, want host.docker.internal", host, got)
			}
		} else if got != host {
			t.Errorf("ResolveHostForDocker(%q) outside Docker = %q, want unchanged", host, got)
		}
	}
}

func TestIsRunningInDocker_Stable(t *testing.T) {
	// Detection is cached; repeated calls must agree.
	first := IsRunningInDocker()
	for i := 0; i < 3; i++ {
		if IsRunningInDocker() != first {
			t.Fatal("IsRunningInDocker() changed between calls")
		}
	}
}
