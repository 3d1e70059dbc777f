// Package segmentation owns the network segmenter: the policies that cut
// the attributed centerline into reporting units and summarise each unit.
//
// Responsibilities: fixed-length units walked from every route start,
// custom units grouped by a caller-supplied segment ID, and the overlay
// that locates user segment lines on the attributed network.
// Key types: Unit, Attributed, UserSegment.
//
// Dependency rule: segmentation depends on confinement, network and geom.
package segmentation
