package deps

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

var (
	ErrNotDependency           = errors.New("caller package is not a registered dependency")
	ErrNotCoreDependency       = errors.New("caller package is not a core dependency")
	ErrDependencyNotFound      = errors.New("dependency not found")
	ErrDependencyAlreadyExists = errors.New("dependency already exists")
	ErrNotExtension            = errors.New("package is not a whitelisted extension")
)

// Dep is one registered dependency of an account.
type Dep struct {
	Name    string
	Addr    string
	Version *semver.Version
}

// Deps is the ordered dependency registry of an account. Index 0 is always
// the execution-engine package itself. Names and addrs are each unique.
type Deps struct {
	inner             []Dep
	unverifiedAllowed bool
}

// Pair names a package to register alongside its addr.
type Pair struct {
	Name string
	Addr string
}

// New builds a registry from the trusted-extensions whitelist. Every pair
// must be whitelisted; the first pair is the core engine package.
func New(extensions *Extensions, unverifiedAllowed bool, pairs ...Pair) (*Deps, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("at least the core engine package is required")
	}
	d := &Deps{unverifiedAllowed: unverifiedAllowed}
	for _, p := range pairs {
		version, err := extensions.Latest(p.Addr)
		if err != nil {
			return nil, err
		}
		name, err := extensions.Name(p.Addr)
		if err != nil {
			return nil, err
		}
		if name != p.Name {
			return nil, fmt.Errorf("%w: %s registered as %s", ErrNotExtension, p.Name, name)
		}
		if err := d.add(Dep{Name: p.Name, Addr: p.Addr, Version: version}); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// NewForTesting builds a registry without consulting an extensions whitelist.
func NewForTesting(deps ...Dep) *Deps {
	d := &Deps{unverifiedAllowed: true}
	for _, dep := range deps {
		_ = d.add(dep)
	}
	return d
}

func (d *Deps) add(dep Dep) error {
	for _, got := range d.inner {
		if got.Addr == dep.Addr || got.Name == dep.Name {
			return fmt.Errorf("%w: %s", ErrDependencyAlreadyExists, dep.Name)
		}
	}
	d.inner = append(d.inner, dep)
	return nil
}

// Add registers a further dependency. Unless unverified deps are allowed,
// the package must be whitelisted at the given version.
func (d *Deps) Add(extensions *Extensions, name, addr string, version *semver.Version) error {
	if !d.unverifiedAllowed && !extensions.IsExtension(addr, version) {
		return fmt.Errorf("%w: %s@%s", ErrNotExtension, addr, version)
	}
	return d.add(Dep{Name: name, Addr: addr, Version: version})
}

// Remove drops a dependency by name. The core dependency cannot be removed.
func (d *Deps) Remove(name string) error {
	for i, dep := range d.inner {
		if dep.Name == name {
			if i == 0 {
				return fmt.Errorf("%w: cannot remove the core dependency", ErrNotCoreDependency)
			}
			d.inner = append(d.inner[:i], d.inner[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrDependencyNotFound, name)
}

// Contains reports whether addr is a registered dependency.
func (d *Deps) Contains(addr string) bool {
	for _, dep := range d.inner {
		if dep.Addr == addr {
			return true
		}
	}
	return false
}

// Get returns the dependency registered under addr.
func (d *Deps) Get(addr string) (Dep, error) {
	for _, dep := range d.inner {
		if dep.Addr == addr {
			return dep, nil
		}
	}
	return Dep{}, fmt.Errorf("%w: %s", ErrDependencyNotFound, addr)
}

// GetByName returns the dependency registered under name.
func (d *Deps) GetByName(name string) (Dep, error) {
	for _, dep := range d.inner {
		if dep.Name == name {
			return dep, nil
		}
	}
	return Dep{}, fmt.Errorf("%w: %s", ErrDependencyNotFound, name)
}

// AssertIsDep fails unless addr is registered at exactly version.
func (d *Deps) AssertIsDep(addr string, version *semver.Version) error {
	dep, err := d.Get(addr)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotDependency, addr)
	}
	if !dep.Version.Equal(version) {
		return fmt.Errorf("%w: %s at %s, registered %s", ErrNotDependency, addr, version, dep.Version)
	}
	return nil
}

// AssertIsCoreDep fails unless addr is the engine package at index 0.
func (d *Deps) AssertIsCoreDep(addr string, version *semver.Version) error {
	if len(d.inner) == 0 || d.inner[0].Addr != addr {
		return fmt.Errorf("%w: %s", ErrNotCoreDependency, addr)
	}
	if !d.inner[0].Version.Equal(version) {
		return fmt.Errorf("%w: %s at %s, registered %s", ErrNotCoreDependency, addr, version, d.inner[0].Version)
	}
	return nil
}

// UnverifiedAllowed reports whether non-whitelisted deps may be added.
func (d *Deps) UnverifiedAllowed() bool {
	return d.unverifiedAllowed
}

// SetUnverifiedAllowed toggles whether non-whitelisted deps may be added.
func (d *Deps) SetUnverifiedAllowed(allowed bool) {
	d.unverifiedAllowed = allowed
}

// List returns the registered dependencies in order.
func (d *Deps) List() []Dep {
	out := make([]Dep, len(d.inner))
	copy(out, d.inner)
	return out
}

// Len returns the number of registered dependencies.
func (d *Deps) Len() int {
	return len(d.inner)
}
