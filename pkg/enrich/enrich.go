// Package enrich joins a normalized dependency set with registry metadata,
// producing one enriched record per manifest entry with its publish age and
// deprecation status, and filters the records for the requested view.
package enrich

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/depstale/depstale/pkg/manifest"
	"github.com/depstale/depstale/pkg/observability"
	"github.com/depstale/depstale/pkg/registry"
)

// DefaultConcurrency bounds simultaneous in-flight registry lookups.
const DefaultConcurrency = 12

// hoursPerYear uses a fixed 365.25-day year so ages are deterministic.
const hoursPerYear = 24 * 365.25

// Dependency is one manifest entry joined with its registry facts. Records
// are immutable once built; Resolved guards the registry-derived fields.
type Dependency struct {
	Name       string
	Version    string
	Workspace  string
	Production bool

	// Resolved reports whether the registry lookup succeeded and the
	// resolved version was found in the publish history. When false,
	// PublishedAt and AgeYears carry no meaning and Deprecated is false.
	Resolved    bool
	PublishedAt time.Time
	AgeYears    float64

	Deprecated         bool
	DeprecationMessage string

	// Latest carries the registry's latest dist-tag and its age, for
	// reporting how far behind the resolved version is.
	Latest            string
	LatestResolved    bool
	LatestPublishedAt time.Time
	LatestAgeYears    float64
}

// Result is the output of one enrichment run: records stably sorted by name
// then version, plus warnings for every entry that could not be resolved.
type Result struct {
	Dependencies []Dependency
	Warnings     []string
}

// Fetcher retrieves registry metadata for one package name.
// *registry.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (*registry.PackageMetadata, error)
}

// Options configures an Enricher.
type Options struct {
	// Concurrency bounds the lookup fan-out; defaults to DefaultConcurrency.
	Concurrency int

	// Now supplies the reference time for age computation; defaults to
	// time.Now. Injected for deterministic tests.
	Now func() time.Time
}

// Enricher runs the lookup fan-out and joins the results.
type Enricher struct {
	fetcher     Fetcher
	concurrency int
	now         func() time.Time
}

// New creates an Enricher using fetcher for registry lookups.
func New(fetcher Fetcher, opts Options) *Enricher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Enricher{
		fetcher:     fetcher,
		concurrency: opts.Concurrency,
		now:         opts.Now,
	}
}

// Enrich fetches metadata for every unique name in the set and produces
// exactly one record per manifest entry. Lookup failures never abort the
// run; the affected entries degrade to unresolved records with a warning.
func (e *Enricher) Enrich(ctx context.Context, set manifest.DependencySet) (*Result, error) {
	start := time.Now()

	names := uniqueNames(set)
	metas := e.fetchAll(ctx, names)

	// One reference time for the whole run keeps ages comparable across
	// records.
	now := e.now()

	result := &Result{}
	for _, dep := range set.Production {
		result.add(join(dep, set.Workspace, true, now, metas))
	}
	for _, dep := range set.Development {
		result.add(join(dep, set.Workspace, false, now, metas))
	}

	sort.SliceStable(result.Dependencies, func(i, j int) bool {
		a, b := result.Dependencies[i], result.Dependencies[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Version < b.Version
	})

	observability.Registry().OnEnrichComplete(ctx, len(result.Dependencies), len(result.Warnings), time.Since(start))
	return result, nil
}

// fetchAll dispatches one lookup per unique name through a bounded pool and
// waits for all of them before returning. Failed lookups are recorded as
// nil entries; the join step turns them into unresolved records.
func (e *Enricher) fetchAll(ctx context.Context, names []string) map[string]*registry.PackageMetadata {
	metas := make(map[string]*registry.PackageMetadata, len(names))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for _, name := range names {
		name := name
		g.Go(func() error {
			meta, err := e.fetcher.Fetch(ctx, name)
			if err != nil {
				meta = nil
			}
			mu.Lock()
			metas[name] = meta
			mu.Unlock()
			return nil
		})
	}
	// Lookups never return errors through the group; the join barrier is
	// all Wait is here for.
	_ = g.Wait()

	return metas
}

func join(dep manifest.Dependency, workspace string, production bool, now time.Time, metas map[string]*registry.PackageMetadata) Dependency {
	record := Dependency{
		Name:       dep.Name,
		Version:    dep.Version,
		Workspace:  workspace,
		Production: production,
	}

	meta := metas[dep.Name]
	if meta == nil {
		return record
	}

	if publishedAt, ok := meta.PublishedAt(dep.Version); ok {
		record.Resolved = true
		record.PublishedAt = publishedAt
		record.AgeYears = now.Sub(publishedAt).Hours() / hoursPerYear
	}
	if record.Deprecated = meta.IsDeprecated(dep.Version); record.Deprecated {
		record.DeprecationMessage = meta.DeprecationMessage(dep.Version)
	}

	record.Latest = meta.Latest
	if latestAt, ok := meta.LatestPublishedAt(); ok {
		record.LatestResolved = true
		record.LatestPublishedAt = latestAt
		record.LatestAgeYears = now.Sub(latestAt).Hours() / hoursPerYear
	}

	return record
}

// add appends the record, degrading unresolved entries into warnings.
func (r *Result) add(record Dependency) {
	if !record.Resolved {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s@%s could not be resolved against the registry", record.Name, record.Version))
		record.Deprecated = false
		record.DeprecationMessage = ""
	}
	r.Dependencies = append(r.Dependencies, record)
}

// uniqueNames collects the unique package names across both tags, in first
// appearance order.
func uniqueNames(set manifest.DependencySet) []string {
	seen := make(map[string]bool, len(set.Production)+len(set.Development))
	var names []string
	for _, dep := range set.Production {
		if !seen[dep.Name] {
			seen[dep.Name] = true
			names = append(names, dep.Name)
		}
	}
	for _, dep := range set.Development {
		if !seen[dep.Name] {
			seen[dep.Name] = true
			names = append(names, dep.Name)
		}
	}
	return names
}

// UniqueByName reduces records to one per package name, production entries
// taking precedence over development ones. Input order is preserved
// otherwise.
func UniqueByName(deps []Dependency) []Dependency {
	byName := make(map[string]int, len(deps))
	var out []Dependency
	for _, d := range deps {
		idx, seen := byName[d.Name]
		if !seen {
			byName[d.Name] = len(out)
			out = append(out, d)
			continue
		}
		if d.Production && !out[idx].Production {
			out[idx] = d
		}
	}
	return out
}
