// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package counter

import "fmt"

// Command is a control verb the consumer can issue against the pipeline.
type Command int

const (
	CmdStart Command = iota + 1
	CmdPause
	CmdResume
	CmdStop
	CmdReset
	CmdEmergencyStop
)

func (c Command) String() string {
	switch c {
	case CmdStart:
		return "start"
	case CmdPause:
		return "pause"
	case CmdResume:
		return "resume"
	case CmdStop:
		return "stop"
	case CmdReset:
		return "reset"
	case CmdEmergencyStop:
		return "emergency_stop"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// ParseCommand is the inverse of Command.String, for text boundaries like
// the websocket control feed.
func ParseCommand(s string) (Command, error) {
	switch s {
	case "start":
		return CmdStart, nil
	case "pause":
		return CmdPause, nil
	case "resume":
		return CmdResume, nil
	case "stop":
		return CmdStop, nil
	case "reset":
		return CmdReset, nil
	case "emergency_stop":
		return CmdEmergencyStop, nil
	default:
		return 0, fmt.Errorf("unknown command %q", s)
	}
}
