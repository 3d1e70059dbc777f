package confinement

import (
	"fmt"

	"github.com/banshee-data/confinement/internal/geom"
	"github.com/banshee-data/confinement/internal/monitoring"
	"github.com/paulmach/orb"
)

// Extraction is the output of the margin extractor.
type Extraction struct {
	// Confined is the channel polygon clipped to the valley bottom.
	Confined orb.MultiPolygon
	// ChannelMargins is the boundary of Confined as polylines.
	ChannelMargins orb.MultiLineString
	// Margins are the confining margins that survived the length filter,
	// numbered 1..N.
	Margins []Margin
	// Removed counts margins dropped by the length filter.
	Removed int
}

// ExtractMargins intersects the channel with the valley bottom and returns
// the confined channel polygon together with the confining margins: the
// single-part stretches of its boundary that lie on the valley-bottom
// boundary. When p.FilterByLength is positive, margins of that length or
// shorter are dropped before IDs are assigned.
//
// An empty confined polygon is an error wrapping geom.ErrEmptyResult. No
// margins at all is a valid result.
func ExtractMargins(channel, valley orb.MultiPolygon, p Params) (*Extraction, error) {
	logf := monitoring.Stage("margins")

	confined, err := geom.Intersection(channel, valley, p.Epsilon)
	if err != nil {
		return nil, fmt.Errorf("intersect channel with valley bottom: %w", err)
	}
	if len(confined) == 0 {
		return nil, fmt.Errorf("channel does not overlap valley bottom: %w", geom.ErrEmptyResult)
	}

	ext := &Extraction{
		Confined:       confined,
		ChannelMargins: geom.Boundary(confined),
	}

	raw, err := geom.SharedBoundary(confined, valley, p.Epsilon)
	if err != nil {
		return nil, fmt.Errorf("extract margins: %w", err)
	}
	for _, ls := range raw {
		l := geom.Length(ls)
		if p.FilterByLength > 0 && l <= p.FilterByLength {
			ext.Removed++
			continue
		}
		ext.Margins = append(ext.Margins, Margin{
			ID:     len(ext.Margins) + 1,
			Line:   ls,
			Length: l,
		})
	}

	logf("confined area %.2f, %d raw margins, %d removed by filter %.2f",
		geom.MultiArea(confined), len(raw), ext.Removed, p.FilterByLength)
	return ext, nil
}
