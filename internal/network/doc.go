// Package network owns the stream network model: reaches, routes and the
// dissolve that turns one into the other.
//
// Responsibilities: grouping reaches by RouteID, chaining them end to start
// through junction-free nodes, recording where every reach sits along its
// route, and finding dangles (network end points).
// Key types: Reach, Route, Member.
//
// Dependency rule: network may depend on geom, never on confinement or the
// samplers built on top of it.
package network
