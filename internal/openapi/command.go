package openapi

import (
	"fmt"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
)

// Bot command names.
const (
	CommandTurnOn  = "turnOn"
	CommandTurnOff = "turnOff"
	CommandPress   = "press"
)

// Command is the body of a command request.
type Command struct {
	CommandType string `json:"commandType"`
	Command     string `json:"command"`
	Parameter   string `json:"parameter"`
}

// NewCommand creates a standard command with the default parameter.
func NewCommand(name string) Command {
	return Command{
		CommandType: "command",
		Command:     name,
		Parameter:   "default",
	}
}

// BuildBotCommand selects the command for a bot from its mode and the desired
// state. Press mode always presses. A bot without a mode cannot be commanded.
func BuildBotCommand(mode device.BotMode, desired bool) (Command, error) {
	switch mode {
	case device.BotModeSwitch:
		if desired {
			return NewCommand(CommandTurnOn), nil
		}
		return NewCommand(CommandTurnOff), nil
	case device.BotModePress:
		return NewCommand(CommandPress), nil
	default:
		return Command{}, fmt.Errorf("%w: bot device parameters not set", device.ErrNoBotMode)
	}
}
