package main

import (
	"os"

	"git.home.luguber.info/inful/songbuilder/cmd/songbuilder/commands"
)

func main() {
	os.Exit(commands.Execute(os.Args[1:], commands.NewGlobal()))
}
