package edit

import (
	"errors"
	"fmt"
	"math"

	"github.com/james-see/pianodaw/pkg/model"
	"github.com/james-see/pianodaw/pkg/theory"
)

var ErrUnknownOp = errors.New("unknown transform")

// Ops lists the names accepted by NewTransform.
var Ops = []string{
	"transpose", "mirror-v", "mirror-h", "reverse", "legato", "overlap",
	"scale", "length", "velocity", "humanize", "snap-major", "snap-minor",
}

// NewTransform builds a note transform by name. amount is the semitones for
// transpose, ticks for overlap and length, percent for scale, the velocity
// for velocity, the timing range in ticks for humanize (velocity range is
// a tenth of it) and the root pitch class for the scale snaps. Other
// transforms ignore it.
func NewTransform(op string, clip *model.Clip, ids []model.NoteID, amount float64) (Command, error) {
	n := int64(math.Round(amount))
	switch op {
	case "transpose":
		return NewTranspose(clip, ids, int(n)), nil
	case "mirror-v":
		return NewMirrorVertical(clip, ids), nil
	case "mirror-h":
		return NewMirrorHorizontal(clip, ids), nil
	case "reverse":
		return NewReverse(clip, ids), nil
	case "legato":
		return NewLegato(clip, ids), nil
	case "overlap":
		return NewSetOverlap(clip, ids, n), nil
	case "scale":
		return NewScaleLength(clip, ids, amount), nil
	case "length":
		return NewFixedLength(clip, ids, n), nil
	case "velocity":
		return NewSetVelocity(clip, ids, int(n)), nil
	case "humanize":
		return NewHumanize(clip, ids, n, int(n/10), n), nil
	case "snap-major":
		return NewSnapToScale(clip, ids, int(n), theory.Major), nil
	case "snap-minor":
		return NewSnapToScale(clip, ids, int(n), theory.Minor), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOp, op)
}
