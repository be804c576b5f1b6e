package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/depstale/depstale/pkg/errors"
)

// Dependency identifies one manifest entry: a package name and the concrete
// version the lockfile resolved it to.
type Dependency struct {
	Name    string
	Version string
}

// DependencySet holds the resolved direct dependencies of one package.json,
// partitioned into production and development entries. Both slices preserve
// the manifest's declaration order and contain no duplicate (name, version)
// pair within a slice.
type DependencySet struct {
	// Workspace is the workspace directory relative to the project root.
	// Empty for the root manifest.
	Workspace string

	Production  []Dependency
	Development []Dependency
}

// Empty reports whether the set contains no entries at all.
func (s DependencySet) Empty() bool {
	return len(s.Production) == 0 && len(s.Development) == 0
}

// Project is the result of loading a project directory: one dependency set
// per manifest (root first, then workspaces in glob order) plus the non-fatal
// warnings collected along the way.
type Project struct {
	Dir      string
	Sets     []DependencySet
	Warnings []string
}

// Load reads <dir>/package.json and <dir>/package-lock.json and combines them
// into resolved dependency sets.
//
// If workspaces is non-empty it overrides the workspace globs declared in the
// root package.json; pass nil to follow the manifest. Workspace manifests are
// resolved against the single root lockfile, probing the workspace's own
// node_modules path before the hoisted one.
//
// Missing files and top-level malformed JSON are fatal. A manifest name
// absent from the lockfile is dropped with a warning.
func Load(dir string, workspaces []string) (*Project, error) {
	root, err := readPackageJSON(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, err
	}

	lock, lockWarnings, err := readLockfile(filepath.Join(dir, "package-lock.json"))
	if err != nil {
		return nil, err
	}

	project := &Project{Dir: dir, Warnings: lockWarnings}

	rootSet, warnings := combine("", root, lock)
	project.Sets = append(project.Sets, rootSet)
	project.Warnings = append(project.Warnings, warnings...)

	if workspaces == nil {
		workspaces = expandWorkspaces(dir, root.Workspaces)
	}
	for _, ws := range workspaces {
		if err := errors.ValidateWorkspacePath(ws); err != nil {
			project.Warnings = append(project.Warnings, fmt.Sprintf("skipping workspace %q: %s", ws, errors.UserMessage(err)))
			continue
		}
		pkg, err := readPackageJSON(filepath.Join(dir, ws, "package.json"))
		if err != nil {
			project.Warnings = append(project.Warnings, fmt.Sprintf("skipping workspace %q: %s", ws, errors.UserMessage(err)))
			continue
		}
		set, warnings := combine(ws, pkg, lock)
		project.Sets = append(project.Sets, set)
		project.Warnings = append(project.Warnings, warnings...)
	}

	return project, nil
}

// combine intersects one manifest's declared names with the lockfile's
// resolved versions, keeping declaration order.
func combine(workspace string, pkg *packageJSON, lock *Lockfile) (DependencySet, []string) {
	set := DependencySet{Workspace: workspace}
	var warnings []string

	set.Production, warnings = resolveSection(workspace, pkg.Dependencies, lock, warnings)
	set.Development, warnings = resolveSection(workspace, pkg.DevDependencies, lock, warnings)

	return set, warnings
}

func resolveSection(workspace string, declared []declaredDependency, lock *Lockfile, warnings []string) ([]Dependency, []string) {
	var deps []Dependency
	seen := make(map[Dependency]bool, len(declared))

	for _, d := range declared {
		if err := errors.ValidateNpmPackageName(d.Name); err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping %q: %s", d.Name, errors.UserMessage(err)))
			continue
		}
		version, ok := lock.Resolve(workspace, d.Name)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s is declared in package.json but missing from package-lock.json", d.Name))
			continue
		}
		dep := Dependency{Name: d.Name, Version: version}
		if seen[dep] {
			continue
		}
		seen[dep] = true
		deps = append(deps, dep)
	}

	return deps, warnings
}

// expandWorkspaces resolves the root manifest's workspace globs to workspace
// directories that actually contain a package.json. filepath.Glob returns
// sorted matches, so the workspace order is deterministic.
func expandWorkspaces(dir string, globs []string) []string {
	var workspaces []string
	for _, glob := range globs {
		matches, err := filepath.Glob(filepath.Join(dir, glob))
		if err != nil {
			continue
		}
		for _, match := range matches {
			if info, err := os.Stat(filepath.Join(match, "package.json")); err != nil || info.IsDir() {
				continue
			}
			rel, err := filepath.Rel(dir, match)
			if err != nil {
				continue
			}
			workspaces = append(workspaces, filepath.ToSlash(rel))
		}
	}
	return workspaces
}
