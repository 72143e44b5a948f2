package speech

import (
	"context"
	"os/exec"
)

type Command interface {
	Output() ([]byte, error)
	GetArgs() []string
}

type execCommand struct {
	*exec.Cmd
}

func (exc execCommand) GetArgs() []string {
	return exc.Args
}

func newExecCommander(ctx context.Context, name string, arg ...string) Command {
	execCmd := exec.CommandContext(ctx, name, arg...)
	return execCommand{Cmd: execCmd}
}
