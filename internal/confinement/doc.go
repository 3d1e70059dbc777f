// Package confinement owns the confinement model: confining margins, bank
// sides and the per-segment confinement state of the stream centerline.
//
// Responsibilities: margin extraction from the channel and valley-bottom
// polygons, bank-side classification of channel fragments and margins,
// transfer of margins onto the dissolved centerline with the correction
// pass, and derivation of Con_Type, IsConfined and IsConstric.
// Key types: Margin, MarginSegment, Segment, ConType, SideFlag.
//
// Dependency rule: confinement may depend on geom and network. It never
// reads or writes files; datasets are converted at the pipeline boundary.
package confinement
