package main

import (
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/google/shlex"
)

// splitScript turns "motor 0 75; servo 1 90" into one argument list per
// command. Empty commands are skipped.
func splitScript(script string) ([][]string, error) {
	var cmds [][]string
	for _, part := range strings.Split(script, ";") {
		args, err := shlex.Split(part)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", strings.TrimSpace(part), err)
		}
		if len(args) > 0 {
			cmds = append(cmds, args)
		}
	}
	return cmds, nil
}

func runScript(shell *ishell.Shell, script string) error {
	cmds, err := splitScript(script)
	if err != nil {
		return err
	}
	for _, args := range cmds {
		if err := shell.Process(args...); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
	}
	return nil
}
