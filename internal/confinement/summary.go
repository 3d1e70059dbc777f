package confinement

import (
	"sort"
	"strconv"

	"github.com/banshee-data/confinement/internal/geom"
	"github.com/banshee-data/confinement/internal/network"
	"gonum.org/v1/gonum/floats"
)

// State is the confinement state of one attributed centerline piece.
type State struct {
	Confined    bool
	Constricted bool
}

// StateOf returns the state for a confinement type.
func StateOf(t ConType) State {
	return State{Confined: t.IsConfined(), Constricted: t.IsConstricted()}
}

// Piece is a length of centerline carrying a state and the key of the unit
// it is summed into.
type Piece struct {
	Key    string
	Length float64
	State
}

// Ratio is the grouped length sum of one unit.
type Ratio struct {
	Key    string
	Length float64
	// Confinement and Constriction are the fractions of Length that are
	// confined and constricted.
	Confinement  float64
	Constriction float64
}

// Ratios sums piece lengths per key and returns the confined and
// constricted fractions of every key. Keys that parse as integers sort
// numerically ahead of the rest, which sort as text.
func Ratios(pieces []Piece) []Ratio {
	type sums struct{ total, confined, constricted []float64 }
	groups := map[string]*sums{}
	var keys []string
	for _, pc := range pieces {
		g, ok := groups[pc.Key]
		if !ok {
			g = &sums{}
			groups[pc.Key] = g
			keys = append(keys, pc.Key)
		}
		g.total = append(g.total, pc.Length)
		if pc.Confined {
			g.confined = append(g.confined, pc.Length)
		}
		if pc.Constricted {
			g.constricted = append(g.constricted, pc.Length)
		}
	}
	SortKeys(keys)

	out := make([]Ratio, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		r := Ratio{Key: k, Length: floats.Sum(g.total)}
		if r.Length > 0 {
			r.Confinement = floats.Sum(g.confined) / r.Length
			r.Constriction = floats.Sum(g.constricted) / r.Length
		}
		out = append(out, r)
	}
	return out
}

// SortKeys orders unit keys: integers numerically first, then text.
func SortKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, aerr := strconv.ParseInt(keys[i], 10, 64)
		b, berr := strconv.ParseInt(keys[j], 10, 64)
		switch {
		case aerr == nil && berr == nil:
			return a < b
		case aerr == nil:
			return true
		case berr == nil:
			return false
		}
		return keys[i] < keys[j]
	})
}

// SegmentReaches turns attributed segments back into network reaches so
// downstream samplers can dissolve them by RouteID. The returned states are
// indexed like the reaches.
func SegmentReaches(segs []Segment) ([]network.Reach, []State) {
	reaches := make([]network.Reach, len(segs))
	states := make([]State, len(segs))
	for i, s := range segs {
		reaches[i] = network.Reach{Index: i, RouteID: s.RouteID, Line: s.Line}
		states[i] = StateOf(s.Type)
	}
	return reaches, states
}

// Collect returns the pieces of route r that fall inside iv, keyed by key.
// states holds the state of every reach r was dissolved from.
func Collect(r network.Route, states []State, iv geom.Interval, key string) []Piece {
	var out []Piece
	for _, ov := range r.Overlaps(iv) {
		out = append(out, Piece{
			Key:    key,
			Length: ov.Length,
			State:  states[r.Members[ov.Member].Reach],
		})
	}
	return out
}
