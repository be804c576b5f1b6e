package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/depstale/depstale/pkg/enrich"
	"github.com/depstale/depstale/pkg/manifest"
	"github.com/depstale/depstale/pkg/registry"
)

// runAudit is the shared pipeline behind the old and deprecated commands:
// load the manifests, enrich every workspace set against the registry,
// filter for the requested view, and render one section per workspace.
//
// Only manifest loading can fail the run. Registry failures degrade the
// affected entries to warnings, printed after the report, and the command
// still exits zero.
func (c *CLI) runAudit(ctx context.Context, out io.Writer, view reportView, filter enrich.FilterOptions) error {
	dir := c.projectPath()
	c.Logger.Debugf("Auditing %s", dir)

	project, err := manifest.Load(dir, c.workspaceList())
	if err != nil {
		return err
	}

	store := c.newCacheBackend(ctx)
	defer store.Close()

	client := registry.New(registry.Options{
		BaseURL:  c.registryBaseURL(),
		Cache:    store,
		CacheTTL: c.cfg.Cache.TTL.Duration,
		Refresh:  c.refresh,
		Timeout:  c.lookupTimeout(),
	})
	enricher := enrich.New(client, enrich.Options{Concurrency: c.concurrencyLimit()})

	prog := newProgress(c.Logger)
	warnings := append([]string(nil), project.Warnings...)
	total := 0

	for _, set := range project.Sets {
		result, err := enricher.Enrich(ctx, set)
		if err != nil {
			return err
		}
		warnings = append(warnings, result.Warnings...)
		total += len(enrich.UniqueByName(result.Dependencies))

		renderReport(out, set.Workspace, view, enrich.Filter(result.Dependencies, filter), filter.ProductionOnly)
	}

	prog.done(fmt.Sprintf("Audited %d packages across %d manifests", total, len(project.Sets)))

	if len(warnings) > 0 {
		printWarning(out, "%d entries could not be fully resolved:", len(warnings))
		for _, w := range warnings {
			printDetail(out, "%s", w)
		}
	}

	return nil
}
