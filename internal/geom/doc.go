// Package geom owns the planar geometry primitives used by the confinement
// pipeline.
//
// Responsibilities: linear referencing along polylines (measures, point at
// measure, projection, substrings), point snapping, polygon intersection,
// shared-boundary extraction, line clipping and splitting polygons along
// cut lines.
// Key types: Interval, Snapper. Geometry values are paulmach/orb types
// throughout; the overlay operations convert to peterstace/simplefeatures
// and run its DCEL set operations, then map the results back.
//
// Dependency rule: geom depends only on orb, simplefeatures and the
// standard library. It knows nothing about streams, margins or datasets.
//
// All operations take a coincidence tolerance. Two points closer than the
// tolerance are treated as the same point; callers normally pass Epsilon.
package geom
