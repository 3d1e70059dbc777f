package segmentation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/banshee-data/confinement/internal/confinement"
	"github.com/banshee-data/confinement/internal/geom"
	"github.com/banshee-data/confinement/internal/monitoring"
	"github.com/banshee-data/confinement/internal/network"
	"github.com/paulmach/orb"
)

// Unit is one reporting unit along a route.
type Unit struct {
	ID       string
	RouteID  int64
	Interval geom.Interval
	Line     orb.LineString
	// Length is the attributed length inside the unit; it equals the
	// interval length for units lying fully on the network.
	Length       float64
	Confinement  float64
	Constriction float64
}

func (u *Unit) apply(r confinement.Ratio) {
	u.Length = r.Length
	u.Confinement = r.Confinement
	u.Constriction = r.Constriction
}

// Fixed walks every route from its start and cuts a unit every size
// units. The remainder at the route end is kept as its own shorter unit;
// a remainder no longer than tol is folded into the previous unit. Unit
// IDs run 1..N across all routes.
//
// routes must have been dissolved from attributed reaches whose states are
// given in states.
func Fixed(ctx context.Context, routes []network.Route, states []confinement.State, size, tol float64) ([]Unit, error) {
	if size <= 0 {
		return nil, fmt.Errorf("segment size must be positive, got %v", size)
	}
	logf := monitoring.Stage("segments")

	var units []Unit
	for _, r := range routes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		total := r.Length()
		for from := 0.0; from < total-tol; {
			to := from + size
			if to >= total-tol {
				to = total
			}
			u := Unit{
				ID:       strconv.Itoa(len(units) + 1),
				RouteID:  r.RouteID,
				Interval: geom.Interval{From: from, To: to},
				Line:     geom.Substring(r.Line, from, to),
			}
			if ratios := confinement.Ratios(confinement.Collect(r, states, u.Interval, u.ID)); len(ratios) > 0 {
				u.apply(ratios[0])
			}
			units = append(units, u)
			from = to
		}
	}
	logf("fixed: %d routes cut into %d units of %.2f", len(routes), len(units), size)
	return units, nil
}

// Attributed is one line of a network that already carries segment IDs and
// confinement flags.
type Attributed struct {
	SegmentID string
	Line      orb.LineString
	confinement.State
	// Attrs are the properties of the source feature.
	Attrs map[string]interface{}
}

// Custom sums the lengths of the attributed lines per segment ID and
// returns the confinement and constriction ratios of every segment.
func Custom(lines []Attributed) []confinement.Ratio {
	pieces := make([]confinement.Piece, 0, len(lines))
	for _, l := range lines {
		pieces = append(pieces, confinement.Piece{
			Key:    l.SegmentID,
			Length: geom.Length(l.Line),
			State:  l.State,
		})
	}
	out := confinement.Ratios(pieces)
	monitoring.Stage("segments")("custom: %d lines grouped into %d segments", len(lines), len(out))
	return out
}

// UserSegment is a segment line supplied by the caller, not yet attributed.
type UserSegment struct {
	ID   string
	Line orb.LineString
}

// Overlay locates every user segment on the attributed routes by the
// measures of its two end points and summarises the attributed state
// inside that measure range. Both end points must lie within tol of the
// same route; segments that do not are skipped with a diagnostic. Parts
// sharing an ID are summarised together.
func Overlay(ctx context.Context, routes []network.Route, states []confinement.State, user []UserSegment, tol float64) ([]Unit, []confinement.Diagnostic, error) {
	var (
		units  []Unit
		pieces []confinement.Piece
		diags  []confinement.Diagnostic
	)
	for _, us := range user {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if len(us.Line) < 2 || len(routes) == 0 {
			diags = append(diags, skipped(us.ID, "empty geometry or network"))
			continue
		}
		ra, ma, da := network.Nearest(routes, us.Line[0])
		rb, mb, db := network.Nearest(routes, us.Line[len(us.Line)-1])
		switch {
		case da > tol || db > tol:
			diags = append(diags, skipped(us.ID, fmt.Sprintf("end points %.3f and %.3f from the network", da, db)))
			continue
		case ra != rb:
			diags = append(diags, skipped(us.ID, "end points lie on different routes"))
			continue
		}
		if ma > mb {
			ma, mb = mb, ma
		}
		if mb-ma <= tol {
			diags = append(diags, skipped(us.ID, "zero length along the route"))
			continue
		}
		r := routes[ra]
		iv := geom.Interval{From: ma, To: mb}
		units = append(units, Unit{
			ID:       us.ID,
			RouteID:  r.RouteID,
			Interval: iv,
			Line:     geom.Substring(r.Line, ma, mb),
		})
		pieces = append(pieces, confinement.Collect(r, states, iv, us.ID)...)
	}

	byKey := map[string]confinement.Ratio{}
	for _, rt := range confinement.Ratios(pieces) {
		byKey[rt.Key] = rt
	}
	for i := range units {
		units[i].apply(byKey[units[i].ID])
	}
	monitoring.Stage("segments")("overlay: %d of %d user segments located", len(units), len(user))
	return units, diags, nil
}

func skipped(id, reason string) confinement.Diagnostic {
	return confinement.Diagnostic{Level: "Warning", Message: fmt.Sprintf("segment %s skipped: %s", id, reason)}
}
