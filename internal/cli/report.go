package cli

import (
	"fmt"
	"io"

	"github.com/depstale/depstale/pkg/enrich"
)

// reportView names the audit being rendered; it appears in headers and
// totals ("old packages:", "2 deprecated dependencies").
type reportView string

const (
	viewOld        reportView = "old"
	viewDeprecated reportView = "deprecated"
)

const dateLayout = "02/01/2006"

// renderReport writes one workspace section: header, production and
// development groups, and the totals line. deps must already be filtered
// for the view.
func renderReport(w io.Writer, workspace string, view reportView, deps []enrich.Dependency, productionOnly bool) {
	if workspace == "" {
		workspace = "root"
	}
	fmt.Fprintf(w, "\n%s\n", StyleTitle.Render(fmt.Sprintf("[%s] %s packages:", workspace, view)))

	var prod, dev []enrich.Dependency
	for _, d := range deps {
		if d.Production {
			prod = append(prod, d)
		} else {
			dev = append(dev, d)
		}
	}

	if productionOnly {
		renderGroup(w, prod, "", view)
		fmt.Fprintf(w, "\n  total: %d %s production %s\n", len(prod), view, pluralDeps(len(prod)))
		return
	}

	renderGroup(w, prod, "production:", view)
	renderGroup(w, dev, "development:", view)
	fmt.Fprintf(w, "\n  total: %d %s %s, %d %s dev %s\n",
		len(prod), view, pluralDeps(len(prod)),
		len(dev), view, pluralDeps(len(dev)))
}

// renderGroup writes the package lines of one tag group. An empty header
// means the group stands alone (production-only view) and uses shallower
// indentation.
func renderGroup(w io.Writer, deps []enrich.Dependency, header string, view reportView) {
	if len(deps) == 0 {
		return
	}

	indent := "  "
	if header != "" {
		fmt.Fprintf(w, "\n  %s\n", header)
		indent = "    "
	}

	for _, d := range deps {
		identity := StyleHighlight.Render(fmt.Sprintf("%s@%s", d.Name, d.Version))
		if !d.Resolved {
			fmt.Fprintf(w, "\n%s%s\n", indent, identity)
			continue
		}

		switch view {
		case viewOld:
			fmt.Fprintf(w, "\n%s%s (%s)\n", indent, identity, d.PublishedAt.Format(dateLayout))
			age := int(d.AgeYears)
			if d.LatestResolved {
				diff := max(age-int(d.LatestAgeYears), 0)
				fmt.Fprintf(w, "%s    -> %d years old, %d older than latest\n", indent, age, diff)
				fmt.Fprintf(w, "%s        -> latest @%s (%s)\n", indent, d.Latest, d.LatestPublishedAt.Format(dateLayout))
			} else {
				fmt.Fprintf(w, "%s    -> %d years old\n", indent, age)
			}
		case viewDeprecated:
			fmt.Fprintf(w, "\n%s%s\n", indent, identity)
			if d.DeprecationMessage != "" {
				fmt.Fprintf(w, "%s    -> %s\n", indent, StyleDeprecated.Render(d.DeprecationMessage))
			}
		}
	}
}

func pluralDeps(n int) string {
	if n == 1 {
		return "dependency"
	}
	return "dependencies"
}
