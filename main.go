package main

import (
	"os"

	"github.com/harrisonrobin/outlook-todo/pkg/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
