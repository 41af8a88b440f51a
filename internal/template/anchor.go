package template

import "fmt"

// Anchor is a named reference point of a template.
type Anchor int

const (
	Center Anchor = iota
	MiddleLeft
	MiddleRight
	TopLeftStem
	LeftStem
	BottomLeftStem
	TopRightStem
	RightStem
	BottomRightStem
)

var anchorNames = [...]string{
	Center:          "CENTER",
	MiddleLeft:      "MIDDLE_LEFT",
	MiddleRight:     "MIDDLE_RIGHT",
	TopLeftStem:     "TOP_LEFT_STEM",
	LeftStem:        "LEFT_STEM",
	BottomLeftStem:  "BOTTOM_LEFT_STEM",
	TopRightStem:    "TOP_RIGHT_STEM",
	RightStem:       "RIGHT_STEM",
	BottomRightStem: "BOTTOM_RIGHT_STEM",
}

func (a Anchor) String() string {
	if a < 0 || int(a) >= len(anchorNames) {
		return fmt.Sprintf("Anchor(%d)", int(a))
	}
	return anchorNames[a]
}

// Side is a horizontal side of a head, where its stem may stand.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "LEFT"
	}
	return "RIGHT"
}

// Opposite returns the other side.
func (s Side) Opposite() Side { return 1 - s }

// StemAnchor returns the stem anchor on the given side.
func StemAnchor(s Side) Anchor {
	if s == Left {
		return LeftStem
	}
	return RightStem
}

// StemEndAnchor returns the stem anchor on the given side where a stem
// leaving the head upward, or downward when up is false, meets the head.
// An upward stem ends at the bottom part of the head.
func StemEndAnchor(s Side, up bool) Anchor {
	switch {
	case s == Left && up:
		return BottomLeftStem
	case s == Left:
		return TopLeftStem
	case up:
		return BottomRightStem
	default:
		return TopRightStem
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "LEFT":
		*s = Left
	case "RIGHT":
		*s = Right
	default:
		return fmt.Errorf("unknown side %q", b)
	}
	return nil
}
