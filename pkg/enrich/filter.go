package enrich

// DefaultSinceYears is the age threshold for the staleness view.
const DefaultSinceYears = 4.0

// FilterOptions selects the subset of enriched records for one view.
type FilterOptions struct {
	// ProductionOnly excludes development-tagged records.
	ProductionOnly bool

	// RequireResolved excludes records whose registry lookup failed. The age
	// view sets it so a zero threshold still never reports an entry without
	// a publish date.
	RequireResolved bool

	// SinceYears keeps only records at least this many years old; 0 disables
	// the age threshold. Unresolved records never pass an age threshold.
	SinceYears float64

	// DeprecatedOnly keeps only deprecated records.
	DeprecatedOnly bool
}

// Filter applies opts to deps. It is pure and order-preserving: the output
// is always a subsequence of the input.
func Filter(deps []Dependency, opts FilterOptions) []Dependency {
	var out []Dependency
	for _, d := range deps {
		if opts.ProductionOnly && !d.Production {
			continue
		}
		if opts.RequireResolved && !d.Resolved {
			continue
		}
		if opts.DeprecatedOnly && !d.Deprecated {
			continue
		}
		if opts.SinceYears > 0 && (!d.Resolved || d.AgeYears < opts.SinceYears) {
			continue
		}
		out = append(out, d)
	}
	return out
}
