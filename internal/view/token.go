// Package view keeps one rendered chat view per user in sync with the
// remote presentation surface and routes inbound navigation events.
package view

import (
	"errors"
	"fmt"
	"strings"
)

// Screen identifies which screen a navigation action targets.
type Screen string

const (
	// ScreenList shows every sensor as a selectable control.
	ScreenList Screen = "list"
	// ScreenDetail shows one sensor's latest reading.
	ScreenDetail Screen = "detail"
)

// ErrBadToken is returned when a navigation token does not decode into a
// known action. Callers treat it as a no-op inbound event.
var ErrBadToken = errors.New("unparseable navigation token")

// Action is a decoded navigation token: which screen, for which user, and
// for the detail screen, which sensor.
type Action struct {
	Screen   Screen
	UserID   string
	SensorID string
}

// Encode produces the wire form of the action. Encoding is deterministic:
// the same action always yields the same token.
func (a Action) Encode() string {
	switch a.Screen {
	case ScreenDetail:
		return fmt.Sprintf("%s,%s,%s", ScreenDetail, a.UserID, a.SensorID)
	default:
		return fmt.Sprintf("%s,%s", ScreenList, a.UserID)
	}
}

// DecodeAction parses a navigation token. Tokens that do not parse into a
// known screen kind are rejected with ErrBadToken, never a crash.
func DecodeAction(token string) (Action, error) {
	parts := strings.Split(token, ",")
	if len(parts) < 2 || parts[1] == "" {
		return Action{}, ErrBadToken
	}

	switch Screen(parts[0]) {
	case ScreenList:
		if len(parts) != 2 {
			return Action{}, ErrBadToken
		}
		return Action{Screen: ScreenList, UserID: parts[1]}, nil
	case ScreenDetail:
		if len(parts) != 3 || parts[2] == "" {
			return Action{}, ErrBadToken
		}
		return Action{Screen: ScreenDetail, UserID: parts[1], SensorID: parts[2]}, nil
	default:
		return Action{}, ErrBadToken
	}
}
