package confinement

import (
	"fmt"
	"strings"

	"github.com/banshee-data/confinement/internal/geom"
	"github.com/paulmach/orb"
)

// Side is a bank side relative to the flow direction.
type Side int

const (
	SideUnknown Side = iota
	SideLeft
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "LEFT"
	case SideRight:
		return "RIGHT"
	default:
		return ""
	}
}

// ParseSide parses "LEFT" or "RIGHT", ignoring case.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LEFT":
		return SideLeft, nil
	case "RIGHT":
		return SideRight, nil
	}
	return SideUnknown, fmt.Errorf("unknown bank side %q", s)
}

// ConType is the confinement type of a centerline segment.
type ConType int

const (
	ConNone ConType = iota
	ConLeft
	ConRight
	ConBoth
)

func (c ConType) String() string {
	switch c {
	case ConLeft:
		return "LEFT"
	case ConRight:
		return "RIGHT"
	case ConBoth:
		return "BOTH"
	default:
		return "NONE"
	}
}

// ParseConType parses the text form written by String.
func ParseConType(s string) (ConType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NONE", "":
		return ConNone, nil
	case "LEFT":
		return ConLeft, nil
	case "RIGHT":
		return ConRight, nil
	case "BOTH":
		return ConBoth, nil
	}
	return ConNone, fmt.Errorf("unknown confinement type %q", s)
}

// ConTypeOf derives the confinement type from the two side states.
func ConTypeOf(left, right bool) ConType {
	switch {
	case left && right:
		return ConBoth
	case left:
		return ConLeft
	case right:
		return ConRight
	default:
		return ConNone
	}
}

// IsConfined reports whether at least one bank is confined.
func (c ConType) IsConfined() bool { return c != ConNone }

// IsConstricted reports whether both banks are confined.
func (c ConType) IsConstricted() bool { return c == ConBoth }

// SideFlag is the confinement state of one bank of a centerline piece.
type SideFlag int

const (
	// NotApplicable means no margin was transferred onto the piece.
	NotApplicable SideFlag = iota
	// Confirmed means a margin lies alongside the piece.
	Confirmed
	// Unconfirmed means the correction pass found the piece between two
	// margins and withdrew the flag.
	Unconfirmed
)

func (f SideFlag) String() string {
	switch f {
	case Confirmed:
		return "confirmed"
	case Unconfirmed:
		return "unconfirmed"
	default:
		return "n/a"
	}
}

// Confined reports whether the flag counts as confinement.
func (f SideFlag) Confined() bool { return f == Confirmed }

// Margin is a confining margin: a stretch of the confined channel boundary
// lying on the valley-bottom boundary.
type Margin struct {
	ID     int
	Line   orb.LineString
	Side   Side
	Length float64
}

// MarginSegment is a margin cut where the centerline meets the channel
// boundary. Segments carry their own bank side.
type MarginSegment struct {
	ID       int
	MarginID int
	Line     orb.LineString
	Side     Side
}

// BankPolygon is one fragment of the confined channel polygon.
type BankPolygon struct {
	Polygon orb.Polygon
	Side    Side
}

// Segment is an atomic piece of the attributed centerline.
type Segment struct {
	ID       int
	RouteID  int64
	Route    int
	Reach    int
	Interval geom.Interval
	Line     orb.LineString
	Left     SideFlag
	Right    SideFlag
	Type     ConType
}

// Length returns the segment length along its route.
func (s Segment) Length() float64 { return s.Interval.Length() }

// IsConfined mirrors Type.IsConfined.
func (s Segment) IsConfined() bool { return s.Type.IsConfined() }

// IsConstricted mirrors Type.IsConstricted.
func (s Segment) IsConstricted() bool { return s.Type.IsConstricted() }

// Diagnostic is a non-fatal finding reported with the results.
type Diagnostic struct {
	Level   string
	Message string
}

func warnf(format string, v ...interface{}) Diagnostic {
	return Diagnostic{Level: "Warning", Message: fmt.Sprintf(format, v...)}
}

// Params holds the tolerances used across the confinement stages.
type Params struct {
	// FilterByLength removes margins this long or shorter. Zero keeps all.
	FilterByLength float64
	// SplitTolerance is the coincidence radius for split and near
	// operations on the centerline.
	SplitTolerance float64
	// CorrectionRadius is the search radius of the correction pass.
	CorrectionRadius float64
	// BankOffset is the width of the one-sided buffer used to find the
	// left bank.
	BankOffset float64
	// Epsilon is the noding tolerance for polygon work.
	Epsilon float64
}

// DefaultParams returns the tolerances used when none are configured.
func DefaultParams() Params {
	return Params{
		FilterByLength:   5,
		SplitTolerance:   0.01,
		CorrectionRadius: 0.05,
		BankOffset:       1,
		Epsilon:          geom.Epsilon,
	}
}
