package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type CommandKind int

const (
	CmdNone CommandKind = iota
	CmdChat
	CmdCall
	CmdHangup
	CmdMic
	CmdCamera
	CmdTimerStart
	CmdTimerPause
	CmdTimerReset
	CmdTimerPreset
	CmdHelp
	CmdQuit
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrTimerUsage     = errors.New("usage: /timer start|pause|reset|<minutes>")
)

// Command is one line typed into the room input.
type Command struct {
	Kind    CommandKind
	Text    string
	Minutes int
}

const HelpText = "/call  /hangup  /mic  /cam  /timer start|pause|reset|<minutes>  /help  /quit  (start a chat line with // to send a literal slash)"

// ParseCommand interprets an input line. Lines not starting with "/" are
// chat; a leading "//" sends the rest as chat starting with one slash.
// Blank lines yield CmdNone.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return Command{Kind: CmdNone}, nil
	case strings.HasPrefix(line, "//"):
		return Command{Kind: CmdChat, Text: line[1:]}, nil
	case !strings.HasPrefix(line, "/"):
		return Command{Kind: CmdChat, Text: line}, nil
	}

	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/call":
		return Command{Kind: CmdCall}, nil
	case "/hangup", "/end":
		return Command{Kind: CmdHangup}, nil
	case "/mic":
		return Command{Kind: CmdMic}, nil
	case "/cam", "/camera":
		return Command{Kind: CmdCamera}, nil
	case "/help":
		return Command{Kind: CmdHelp}, nil
	case "/quit", "/exit":
		return Command{Kind: CmdQuit}, nil
	case "/timer":
		return parseTimer(args)
	}
	return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}

func parseTimer(args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, ErrTimerUsage
	}

	switch strings.ToLower(args[0]) {
	case "start":
		return Command{Kind: CmdTimerStart}, nil
	case "pause":
		return Command{Kind: CmdTimerPause}, nil
	case "reset":
		return Command{Kind: CmdTimerReset}, nil
	}

	minutes, err := strconv.Atoi(args[0])
	if err != nil {
		return Command{}, ErrTimerUsage
	}
	return Command{Kind: CmdTimerPreset, Minutes: minutes}, nil
}
