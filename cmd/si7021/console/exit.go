package console

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const (
	ExitFailure    = 1
	ExitBadRequest = 2
	ExitNotApplied = 3
)

func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

// Fail reports err in red under a short description.
func Fail(what string, err error) cli.ExitCoder {
	return Exit(ExitFailure, "%s: %s", what, Red(err))
}
