package hosts_test

import (
	"errors"
	"testing"

	"shuttle/internal/config"
	"shuttle/internal/hosts"
	"shuttle/internal/services"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Hosts = []config.Host{
		{
			ID:         "beta",
			Address:    "beta.local",
			Port:       2222,
			User:       "media",
			KeyFile:    "/keys/beta",
			Categories: map[string]string{"root": "/data"},
			Fallback:   "root",
		},
		{
			ID:         "alpha",
			Name:       "Alpha",
			Address:    "alpha.local",
			Port:       22,
			User:       "media",
			KeyFile:    "/keys/alpha",
			Categories: map[string]string{"movies": "/srv/media/movies", "root": "/srv/media"},
			Fallback:   "root",
		},
	}
	return &cfg
}

func TestRegistryLookup(t *testing.T) {
	reg, err := hosts.NewRegistry(testConfig())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	host, err := reg.Get("alpha")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if host.Name != "Alpha" || host.Endpoint() != "alpha.local:22" {
		t.Fatalf("unexpected host %#v", host)
	}
	if dir, ok := host.Categories.Dir("movies"); !ok || dir != "/srv/media/movies" {
		t.Fatalf("unexpected movies dir %q", dir)
	}

	if _, err := reg.Get("gamma"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryAllIsSorted(t *testing.T) {
	reg, err := hosts.NewRegistry(testConfig())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	all := reg.All()
	if len(all) != 2 || all[0].ID != "alpha" || all[1].ID != "beta" {
		t.Fatalf("unexpected order: %v, %v", all[0].ID, all[1].ID)
	}
}

func TestSessionKeyIncludesPort(t *testing.T) {
	reg, _ := hosts.NewRegistry(testConfig())
	host, _ := reg.Get("beta")
	if host.SessionKey() != "beta.local:2222" {
		t.Fatalf("unexpected session key %q", host.SessionKey())
	}
}
