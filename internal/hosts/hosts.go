package hosts

import (
	"fmt"
	"net"
	"sort"
	"strconv"

	"shuttle/internal/config"
	"shuttle/internal/pathmap"
	"shuttle/internal/services"
)

// Host describes one remote endpoint: where to connect, how to
// authenticate, and how its media directories are laid out.
type Host struct {
	ID          string
	Name        string
	Address     string
	Port        int
	User        string
	KeyFile     string
	PasswordEnv string
	Categories  pathmap.Categories
}

// Endpoint returns the dialable address:port string.
func (h *Host) Endpoint() string {
	return net.JoinHostPort(h.Address, strconv.Itoa(h.Port))
}

// SessionKey identifies the session registry slot for this host.
func (h *Host) SessionKey() string {
	return h.Endpoint()
}

// Registry resolves host descriptors by id.
type Registry struct {
	byID  map[string]*Host
	order []string
}

// NewRegistry converts configured hosts into an immutable registry.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	reg := &Registry{byID: make(map[string]*Host, len(cfg.Hosts))}
	for i := range cfg.Hosts {
		hc := &cfg.Hosts[i]
		if _, dup := reg.byID[hc.ID]; dup {
			return nil, fmt.Errorf("hosts: duplicate id %q", hc.ID)
		}
		dirs := make(map[string]string, len(hc.Categories))
		for name, dir := range hc.Categories {
			dirs[name] = dir
		}
		host := &Host{
			ID:          hc.ID,
			Name:        hc.Name,
			Address:     hc.Address,
			Port:        hc.Port,
			User:        hc.User,
			KeyFile:     hc.KeyFile,
			PasswordEnv: hc.PasswordEnv,
			Categories:  pathmap.Categories{Dirs: dirs, Fallback: hc.Fallback},
		}
		reg.byID[host.ID] = host
		reg.order = append(reg.order, host.ID)
	}
	sort.Strings(reg.order)
	return reg, nil
}

// Get returns the host with the given id.
func (r *Registry) Get(id string) (*Host, error) {
	host, ok := r.byID[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "hosts", "get", fmt.Sprintf("unknown host %q", id), nil)
	}
	return host, nil
}

// All returns every host in stable id order.
func (r *Registry) All() []*Host {
	out := make([]*Host, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
