// Package movingwindow owns the moving-window sampler.
//
// Responsibilities: placing seeds along every route so that the largest
// window always fits, cutting one window per seed and window size,
// summarising the attributed network inside each window and pivoting the
// results to one column per window size.
// Key types: Config, Seed, Window, Endpoint, Warning, Result.
//
// Dependency rule: movingwindow depends on confinement, network and geom.
// Routes are sampled concurrently; results are returned in route order.
package movingwindow
