package command

import (
	"fmt"
	"sort"
)

// Registry maps command names to Command definitions.
type Registry struct {
	commands map[string]*Command
}

// NewRegistry creates a Registry populated with the given commands.
//
// Precondition: No two commands may share a name; every command needs a name and a handler.
// Postcondition: Returns a Registry or an error on collisions or incomplete commands.
func NewRegistry(cmds []Command) (*Registry, error) {
	r := &Registry{
		commands: make(map[string]*Command, len(cmds)),
	}

	for i := range cmds {
		cmd := &cmds[i]
		if cmd.Name == "" {
			return nil, fmt.Errorf("command %d has no name", i)
		}
		if cmd.Handler == nil {
			return nil, fmt.Errorf("command %q has no handler", cmd.Name)
		}
		if _, exists := r.commands[cmd.Name]; exists {
			return nil, fmt.Errorf("duplicate command name: %q", cmd.Name)
		}
		r.commands[cmd.Name] = cmd
	}

	return r, nil
}

// Resolve looks up a command by exact name.
//
// Postcondition: Returns (command, true) if found, or (nil, false).
func (r *Registry) Resolve(name string) (*Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns all registered command names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
