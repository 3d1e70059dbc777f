// Package dataset owns the vector datasets exchanged with the outside
// world: GeoJSON feature collections read from and written to the project
// folder.
//
// Responsibilities: reading and writing feature collections through
// fsutil, enforcing the field and geometry contracts of every input before
// any geometry work starts, and converting between features and the
// confinement, segmentation and moving-window types.
// Key types: Contract, Fields.
//
// Dependency rule: dataset is the only package that knows about GeoJSON.
// The geometry stages never import it.
package dataset
