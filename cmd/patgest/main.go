package main

import "github.com/dgallion1/patgest/internal/cli"

func main() {
	cli.Execute()
}
