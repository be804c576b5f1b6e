// Package manifest parses npm manifest pairs (package.json plus
// package-lock.json) into normalized dependency sets.
//
// The lockfile has gone through three incompatible on-disk shapes: a flat
// name-to-info map, a nested dependency tree (lockfileVersion 1), and a
// "packages" map keyed by install path (lockfileVersion 2 and 3). All three
// normalize into one canonical resolution so downstream code never sees the
// shape that was on disk.
//
// Dependencies keep their package.json declaration order, and every emitted
// entry carries the lockfile's concrete resolved version rather than the
// manifest's range specifier. Monorepo workspaces declared in the root
// package.json are supported against the single root lockfile.
package manifest
