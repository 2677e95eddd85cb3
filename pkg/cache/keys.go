package cache

// GraphKeyOpts are the options that change the built street graph.
// Any field difference produces a different cache key.
type GraphKeyOpts struct {
	CRS      string
	Unit     string
	Decimals int
}

// PlanKeyOpts are the options that change the planned network for a
// given graph: attachment, plant selection and trunk construction.
type PlanKeyOpts struct {
	AttachMode     string
	SnapTolerance  float64
	MinSpacing     float64
	MaxDistance    float64
	WeightedPlant  bool
	TrunkMode      string
	CostMode       string
	PrimaryPenalty float64
	SpurThreshold  float64
	SpurMaxDepth   int
	SpurMinLoads   int
	SpurMaxLength  float64
	SpurReduction  float64
	SpurBuffer     float64
}

// Keyer generates cache keys for the pipeline stages.
// Implementations must be deterministic: identical inputs and options
// yield identical keys across processes.
type Keyer interface {
	// GraphKey keys a built street graph by the hash of its raw input.
	GraphKey(inputHash string, opts GraphKeyOpts) string

	// PlanKey keys a planned network by the hash of its street graph.
	PlanKey(graphHash string, opts PlanKeyOpts) string
}

// DefaultKeyer generates hash-based keys with stage prefixes.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// GraphKey generates a key for street graph caching.
func (k *DefaultKeyer) GraphKey(inputHash string, opts GraphKeyOpts) string {
	return hashKey("graph", inputHash, opts)
}

// PlanKey generates a key for network plan caching.
func (k *DefaultKeyer) PlanKey(graphHash string, opts PlanKeyOpts) string {
	return hashKey("plan", graphHash, opts)
}

// ScopedKeyer wraps a Keyer with a prefix so separate projects sharing
// one backend get disjoint key spaces.
//
// Example usage:
//
//	projectKeyer := NewScopedKeyer(NewDefaultKeyer(), "project:north-side:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// GraphKey generates a prefixed key for street graph caching.
func (k *ScopedKeyer) GraphKey(inputHash string, opts GraphKeyOpts) string {
	return k.prefix + k.inner.GraphKey(inputHash, opts)
}

// PlanKey generates a prefixed key for network plan caching.
func (k *ScopedKeyer) PlanKey(graphHash string, opts PlanKeyOpts) string {
	return k.prefix + k.inner.PlanKey(graphHash, opts)
}
