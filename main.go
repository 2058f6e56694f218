package main

import "github.com/agentic-research/sitegraph/cmd"

func main() {
	cmd.Execute()
}
