package chess

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeControl is a base budget in minutes plus a per-move increment in seconds.
type TimeControl struct {
	Minutes   int
	Increment int
}

// DefaultTimeControl is used whenever a time control string cannot be parsed.
var DefaultTimeControl = TimeControl{Minutes: 10, Increment: 0}

func (tc TimeControl) String() string { return fmt.Sprintf("%d+%d", tc.Minutes, tc.Increment) }

// BaseSeconds returns the starting clock of each side.
func (tc TimeControl) BaseSeconds() int { return tc.Minutes * 60 }

// ParseTimeControl parses "<minutes>+<increment>" ("10+5"). A bare "<minutes>"
// means no increment. Anything else yields DefaultTimeControl.
func ParseTimeControl(s string) TimeControl {
	s = strings.TrimSpace(s)
	minPart, incPart, hasInc := strings.Cut(s, "+")
	minutes, err := strconv.Atoi(strings.TrimSpace(minPart))
	if err != nil || minutes <= 0 {
		return DefaultTimeControl
	}
	inc := 0
	if hasInc {
		inc, err = strconv.Atoi(strings.TrimSpace(incPart))
		if err != nil || inc < 0 {
			return DefaultTimeControl
		}
	}
	return TimeControl{Minutes: minutes, Increment: inc}
}

// CreateInitialState returns a waiting game on the starting board with both
// clocks set from the time control.
func CreateInitialState(timeControl string) *GameState {
	tc := ParseTimeControl(timeControl)
	return &GameState{
		Board:     NewBoard(),
		Turn:      White,
		Status:    StatusWaiting,
		Moves:     []Move{},
		WhiteTime: tc.BaseSeconds(),
		BlackTime: tc.BaseSeconds(),
		Increment: tc.Increment,
	}
}

// FormatTime renders seconds as "M:SS". Negative values show as 0:00.
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
