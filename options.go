package framegraph

import "time"

// GraphOption configures a Graph during creation.
//
// Example:
//
//	// Default: aliasing on, 16 cached plans.
//	g := framegraph.New()
//
//	// Debug build: every transient gets its own allocation, pass timings on.
//	g := framegraph.New(framegraph.WithAliasing(false), framegraph.WithProfiling(true))
type GraphOption func(*graphOptions)

// graphOptions holds optional configuration for Graph creation.
type graphOptions struct {
	aliasing     bool
	compileCache int
	labelPrefix  string
	profiling    bool
	now          func() time.Time
}

// DefaultCompileCacheSize is the number of compiled plans kept per graph.
const DefaultCompileCacheSize = 16

func defaultOptions() graphOptions {
	return graphOptions{
		aliasing:     true,
		compileCache: DefaultCompileCacheSize,
		labelPrefix:  "fg",
		now:          time.Now,
	}
}

// WithAliasing enables or disables memory aliasing of transient resources.
// With aliasing off each transient resource receives its own pool slot,
// which helps when debugging corruption suspected to come from reuse.
func WithAliasing(enabled bool) GraphOption {
	return func(o *graphOptions) {
		o.aliasing = enabled
	}
}

// WithCompileCache sets how many compiled plans are memoized, keyed by the
// exact declarations and resource versions they were built from. Toggling
// a feature back and forth then reuses earlier plans. Zero disables the
// cache.
func WithCompileCache(size int) GraphOption {
	return func(o *graphOptions) {
		o.compileCache = max(size, 0)
	}
}

// WithLabelPrefix sets the prefix of GPU object labels created by the graph
// (pool textures, command encoders).
func WithLabelPrefix(prefix string) GraphOption {
	return func(o *graphOptions) {
		o.labelPrefix = prefix
	}
}

// WithProfiling records per-pass CPU encode time, available through
// Graph.Statistics.
func WithProfiling(enabled bool) GraphOption {
	return func(o *graphOptions) {
		o.profiling = enabled
	}
}

// WithClock replaces time.Now for profiling. Intended for tests.
func WithClock(now func() time.Time) GraphOption {
	return func(o *graphOptions) {
		if now != nil {
			o.now = now
		}
	}
}
