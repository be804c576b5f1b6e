package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/depstale/depstale/pkg/errors"
)

// lockEntry is the canonical resolution for one package name: the concrete
// installed version and the names the entry itself declares as dependencies.
type lockEntry struct {
	Version      string
	Dependencies []string
}

// Lockfile is the normalized view of a package-lock.json, shape-agnostic for
// everything downstream. byName is the canonical name-to-resolution map all
// three shapes normalize into; byPath additionally keeps the install-path
// keyed entries of lockfileVersion 2/3 so workspace lookups can probe the
// workspace's own node_modules before the hoisted one.
type Lockfile struct {
	byName map[string]lockEntry
	byPath map[string]lockEntry
}

// Resolve returns the concrete version installed for name, as seen from the
// given workspace ("" for the project root). With install-path data present,
// <workspace>/node_modules/<name> wins over the hoisted node_modules/<name>.
func (l *Lockfile) Resolve(workspace, name string) (string, bool) {
	if l.byPath != nil {
		if workspace != "" {
			if e, ok := l.byPath[workspace+"/node_modules/"+name]; ok {
				return e.Version, true
			}
		}
		if e, ok := l.byPath["node_modules/"+name]; ok {
			return e.Version, true
		}
	}
	if e, ok := l.byName[name]; ok {
		return e.Version, true
	}
	return "", false
}

// Dependencies returns the dependency names the lockfile records for name,
// sorted, or nil if unknown.
func (l *Lockfile) Dependencies(name string) []string {
	e, ok := l.byName[name]
	if !ok {
		return nil
	}
	return e.Dependencies
}

// rawLockfile is the undecoded superset of all three lockfile shapes.
// Which fields are populated decides the shape.
type rawLockfile struct {
	LockfileVersion int                        `json:"lockfileVersion"`
	Packages        map[string]rawLockPackage  `json:"packages"`
	Dependencies    map[string]json.RawMessage `json:"dependencies"`
}

// rawLockPackage covers an entry of the v2/v3 "packages" map and, equally,
// a decoded node of the v1 dependency tree.
type rawLockPackage struct {
	Version      string                     `json:"version"`
	Dev          bool                       `json:"dev"`
	Link         bool                       `json:"link"`
	Dependencies map[string]json.RawMessage `json:"dependencies"`
	Requires     map[string]string          `json:"requires"`
}

func readLockfile(path string) (*Lockfile, []string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil, errors.New(errors.ErrCodeFileNotFound, "package-lock.json not found at %s", path)
	}
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidLockfile, err, "failed to read %s", path)
	}

	var raw rawLockfile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidLockfile, err, "failed to parse %s", path)
	}

	// Shape detection: the lockfileVersion field is authoritative when
	// present; otherwise sniff structurally, packages map first, then the
	// dependency tree (a flat map is a tree with no children).
	switch {
	case raw.Packages != nil && (raw.LockfileVersion >= 2 || raw.LockfileVersion == 0):
		return parsePackagesShape(raw.Packages)
	case raw.Dependencies != nil:
		return parseDependenciesShape(raw.Dependencies)
	default:
		return nil, nil, errors.New(errors.ErrCodeInvalidLockfile, "%s has no recognized dependency section", path)
	}
}

// parsePackagesShape normalizes the lockfileVersion 2/3 "packages" map, keyed
// by install path. The hoisted root entry for a name wins; deeper or
// workspace-local entries only fill names absent at the root.
func parsePackagesShape(packages map[string]rawLockPackage) (*Lockfile, []string, error) {
	lock := &Lockfile{
		byName: make(map[string]lockEntry, len(packages)),
		byPath: make(map[string]lockEntry, len(packages)),
	}
	var warnings []string

	paths := make([]string, 0, len(packages))
	for p := range packages {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		pkg := packages[p]
		name := nameFromInstallPath(p)
		if name == "" || pkg.Link {
			// The "" key is the root project itself; workspace directories
			// appear as bare paths plus a node_modules symlink entry.
			continue
		}
		if pkg.Version == "" {
			warnings = append(warnings, fmt.Sprintf("lockfile entry %q has no version", p))
			continue
		}

		entry := lockEntry{Version: pkg.Version, Dependencies: dependencyNames(pkg)}
		lock.byPath[p] = entry

		hoisted := p == "node_modules/"+name
		if _, exists := lock.byName[name]; hoisted || !exists {
			lock.byName[name] = entry
		}
	}

	return lock, warnings, nil
}

// nameFromInstallPath extracts the package name from an install path such as
// node_modules/@scope/name or frontend/node_modules/name.
func nameFromInstallPath(p string) string {
	idx := strings.LastIndex(p, "node_modules/")
	if idx < 0 {
		return ""
	}
	return p[idx+len("node_modules/"):]
}

// parseDependenciesShape normalizes the lockfileVersion 1 tree (which covers
// the flat shape too). Top-level entries win; nested entries fill names that
// are absent above them.
func parseDependenciesShape(deps map[string]json.RawMessage) (*Lockfile, []string, error) {
	lock := &Lockfile{byName: make(map[string]lockEntry, len(deps))}
	var warnings []string

	walkDependencyTree(deps, true, lock, &warnings)

	return lock, warnings, nil
}

func walkDependencyTree(deps map[string]json.RawMessage, topLevel bool, lock *Lockfile, warnings *[]string) {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := bytes.TrimSpace(deps[name])
		if len(raw) == 0 || raw[0] != '{' {
			// Spec-map leaves (name -> version range) carry no resolution.
			if topLevel {
				*warnings = append(*warnings, fmt.Sprintf("lockfile entry %q is malformed", name))
			}
			continue
		}
		var pkg rawLockPackage
		if err := json.Unmarshal(raw, &pkg); err != nil {
			*warnings = append(*warnings, fmt.Sprintf("lockfile entry %q is malformed", name))
			continue
		}
		if pkg.Version == "" {
			*warnings = append(*warnings, fmt.Sprintf("lockfile entry %q has no version", name))
			continue
		}

		if _, exists := lock.byName[name]; topLevel || !exists {
			lock.byName[name] = lockEntry{Version: pkg.Version, Dependencies: dependencyNames(pkg)}
		}

		if len(pkg.Dependencies) > 0 {
			walkDependencyTree(pkg.Dependencies, false, lock, warnings)
		}
	}
}

// dependencyNames collects the dependency names an entry declares, from
// whichever field its shape uses (requires in v1 trees, dependencies in the
// packages map).
func dependencyNames(pkg rawLockPackage) []string {
	var names []string
	for name := range pkg.Requires {
		names = append(names, name)
	}
	if len(names) == 0 {
		for name := range pkg.Dependencies {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil
	}
	return names
}
