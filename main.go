package main

import (
	"os"

	"github.com/klemjul/chatai/cmd"
	"github.com/klemjul/chatai/internal/app"
)

func main() {
	app := app.NewDefaultApp()
	if err := cmd.RootCommand(app).Execute(); err != nil {
		os.Exit(1)
	}
}
