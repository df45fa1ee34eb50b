package timing

import (
	"fmt"
	"strings"
)

// GridSize is a note value used as a snapping and quantize grid.
type GridSize int

const (
	GridWhole GridSize = iota
	GridHalf
	GridQuarter
	GridEighth
	GridSixteenth
	GridThirtySecond
	GridEighthTriplet
	GridSixteenthTriplet
)

var gridNames = map[GridSize]string{
	GridWhole:            "1/1",
	GridHalf:             "1/2",
	GridQuarter:          "1/4",
	GridEighth:           "1/8",
	GridSixteenth:        "1/16",
	GridThirtySecond:     "1/32",
	GridEighthTriplet:    "1/8T",
	GridSixteenthTriplet: "1/16T",
}

// GridSizes lists every grid from coarsest to finest.
var GridSizes = []GridSize{
	GridWhole, GridHalf, GridQuarter, GridEighthTriplet, GridEighth,
	GridSixteenthTriplet, GridSixteenth, GridThirtySecond,
}

// Ticks returns the grid length in ticks. Triplet divisions truncate.
func (g GridSize) Ticks() int64 {
	switch g {
	case GridWhole:
		return PPQ * 4
	case GridHalf:
		return PPQ * 2
	case GridQuarter:
		return PPQ
	case GridEighth:
		return PPQ / 2
	case GridSixteenth:
		return PPQ / 4
	case GridThirtySecond:
		return PPQ / 8
	case GridEighthTriplet:
		return PPQ * 2 / 3
	case GridSixteenthTriplet:
		return PPQ / 3
	default:
		return PPQ / 4
	}
}

func (g GridSize) String() string {
	if s, ok := gridNames[g]; ok {
		return s
	}
	return fmt.Sprintf("GridSize(%d)", int(g))
}

// ParseGridSize accepts names such as "1/16", "1/8T" or "16th".
func ParseGridSize(s string) (GridSize, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	for g, name := range gridNames {
		if strings.ToUpper(name) == key {
			return g, nil
		}
	}
	switch key {
	case "WHOLE":
		return GridWhole, nil
	case "HALF":
		return GridHalf, nil
	case "QUARTER", "4TH":
		return GridQuarter, nil
	case "8TH", "EIGHTH":
		return GridEighth, nil
	case "16TH", "SIXTEENTH":
		return GridSixteenth, nil
	case "32ND":
		return GridThirtySecond, nil
	}
	return 0, fmt.Errorf("unknown grid size %q", s)
}
