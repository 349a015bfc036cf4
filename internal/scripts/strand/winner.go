package strand

import (
	"fmt"
	"time"
)

// Result is one side's relic record over both rounds.
type Result struct {
	Captures int
	WinTime  time.Duration // round clock left when the relic fell
}

func (r Result) String() string { return fmt.Sprintf("%d captures, %s left", r.Captures, r.WinTime) }

// Winner decides the battle. When both sides took the relic once, the faster capture
// (more clock left) wins; otherwise more captures win. Ties are a draw (TeamNone).
func Winner(alliance, horde Result) Team {
	if alliance.Captures == 1 && horde.Captures == 1 {
		switch {
		case alliance.WinTime > horde.WinTime:
			return TeamAlliance
		case alliance.WinTime < horde.WinTime:
			return TeamHorde
		default:
			return TeamNone
		}
	}
	switch {
	case alliance.Captures > horde.Captures:
		return TeamAlliance
	case alliance.Captures < horde.Captures:
		return TeamHorde
	default:
		return TeamNone
	}
}
