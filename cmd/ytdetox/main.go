package main

import "github.com/emiliopalmerini/ytdetox/internal/cli"

func main() {
	cli.Execute()
}
