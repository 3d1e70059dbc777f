package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Snapper merges points closer than a tolerance onto the first point
// registered near them. Points are bucketed on a grid of tolerance-sized
// cells and a lookup scans the 3x3 block around the cell of the query, so
// two points within tolerance meet even when they straddle a cell edge.
type Snapper struct {
	eps   float64
	cells map[[2]int64][]orb.Point
}

// NewSnapper returns an empty Snapper with tolerance eps.
func NewSnapper(eps float64) *Snapper {
	return &Snapper{eps: eps, cells: make(map[[2]int64][]orb.Point)}
}

func (s *Snapper) key(p orb.Point) [2]int64 {
	return [2]int64{int64(math.Floor(p[0] / s.eps)), int64(math.Floor(p[1] / s.eps))}
}

// Snap returns the nearest registered point within tolerance of p. When
// there is none, p is registered and returned unchanged.
func (s *Snapper) Snap(p orb.Point) orb.Point {
	k := s.key(p)
	best, bestD := p, math.Inf(1)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, q := range s.cells[[2]int64{k[0] + dx, k[1] + dy}] {
				if d := planar.Distance(p, q); d <= s.eps && d < bestD {
					best, bestD = q, d
				}
			}
		}
	}
	if !math.IsInf(bestD, 1) {
		return best
	}
	s.cells[k] = append(s.cells[k], p)
	return p
}
