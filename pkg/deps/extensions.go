// Package deps tracks the packages an account trusts to call its
// privileged entry points, each pinned to a registered version.
package deps

import (
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// Extension is one whitelisted package with its published version history.
type Extension struct {
	Name    string
	Addr    string
	History []*semver.Version
}

// Extensions is the trusted-extensions registry. It is passed explicitly to
// everything that needs it; there is no ambient singleton.
type Extensions struct {
	mu      sync.RWMutex
	byAddr  map[string]*Extension
	ordered []*Extension
}

// NewExtensions creates an empty registry.
func NewExtensions() *Extensions {
	return &Extensions{byAddr: make(map[string]*Extension)}
}

// Add whitelists a package version. Registering the same addr again appends
// to its version history.
func (e *Extensions) Add(name, addr string, version *semver.Version) error {
	if name == "" || addr == "" {
		return fmt.Errorf("extension name and addr are required")
	}
	if version == nil {
		return fmt.Errorf("extension %s: nil version", name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if ext, ok := e.byAddr[addr]; ok {
		if ext.Name != name {
			return fmt.Errorf("addr %s already registered as %s", addr, ext.Name)
		}
		for _, v := range ext.History {
			if v.Equal(version) {
				return fmt.Errorf("extension %s: version %s already registered", name, version)
			}
		}
		ext.History = append(ext.History, version)
		return nil
	}
	ext := &Extension{Name: name, Addr: addr, History: []*semver.Version{version}}
	e.byAddr[addr] = ext
	e.ordered = append(e.ordered, ext)
	return nil
}

// IsExtension reports whether addr is whitelisted at the given version.
func (e *Extensions) IsExtension(addr string, version *semver.Version) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ext, ok := e.byAddr[addr]
	if !ok {
		return false
	}
	for _, v := range ext.History {
		if v.Equal(version) {
			return true
		}
	}
	return false
}

// ContainsAddr reports whether addr is whitelisted at any version.
func (e *Extensions) ContainsAddr(addr string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.byAddr[addr]
	return ok
}

// Latest returns the most recently registered version for addr.
func (e *Extensions) Latest(addr string) (*semver.Version, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ext, ok := e.byAddr[addr]
	if !ok || len(ext.History) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotExtension, addr)
	}
	return ext.History[len(ext.History)-1], nil
}

// Name returns the registered name for addr.
func (e *Extensions) Name(addr string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ext, ok := e.byAddr[addr]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotExtension, addr)
	}
	return ext.Name, nil
}

// List returns the whitelisted extensions in registration order.
func (e *Extensions) List() []Extension {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Extension, 0, len(e.ordered))
	for _, ext := range e.ordered {
		out = append(out, *ext)
	}
	return out
}
