package findrefs

import "runtime"

// SearchOptions configures a single search. It is passed by value.
type SearchOptions struct {
	// CascadeThroughAliases reports references made through using aliases.
	CascadeThroughAliases bool `json:"cascadeThroughAliases" toml:"cascade_through_aliases" yaml:"cascade_through_aliases"`

	// ConsiderSuppressions reports SuppressMessage attributes that name the
	// symbol by display string.
	ConsiderSuppressions bool `json:"considerSuppressions" toml:"consider_suppressions" yaml:"consider_suppressions"`

	// MaxDegreeOfParallelism bounds concurrent per-document work. Values
	// below 1 mean GOMAXPROCS.
	MaxDegreeOfParallelism int `json:"maxDegreeOfParallelism" toml:"max_degree_of_parallelism" yaml:"max_degree_of_parallelism"`

	// AssociatePropertyReferencesWithAccessors makes accessor searches
	// report property reads (getter) and writes (setter).
	AssociatePropertyReferencesWithAccessors bool `json:"associatePropertyReferencesWithAccessors" toml:"associate_property_references_with_accessors" yaml:"associate_property_references_with_accessors"`
}

// DefaultSearchOptions enables every indirect reference kind.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		CascadeThroughAliases:  true,
		ConsiderSuppressions:   true,
		MaxDegreeOfParallelism: runtime.GOMAXPROCS(0),
	}
}

func (o SearchOptions) parallelism() int {
	if o.MaxDegreeOfParallelism < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return o.MaxDegreeOfParallelism
}
