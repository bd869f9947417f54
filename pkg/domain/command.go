package domain

import "strings"

// Command is a message sent from the owner to the component process.
type Command struct {
	Name   string `json:"name"`
	Params string `json:"params"`
}

// ParseCommand splits a signal payload on the first separator.
// Everything after the first "|" (including further separators) is kept as
// a single opaque params string.
//
//	ParseCommand("MOVE|10|20") // Command{Name: "MOVE", Params: "10|20"}
//	ParseCommand("STOP")       // Command{Name: "STOP", Params: ""}
//	ParseCommand("|5")         // Command{Name: "", Params: "5"}
//
// Every payload parses; an empty name is passed on for the component to judge.
func ParseCommand(data string) Command {
	name, params, _ := strings.Cut(data, CommandSeparator)
	return Command{Name: name, Params: params}
}

// String renders the command back into its payload form.
func (c Command) String() string {
	if c.Params == "" {
		return c.Name
	}
	return c.Name + CommandSeparator + c.Params
}
