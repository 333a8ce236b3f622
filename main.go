package main

import "github.com/agentic-research/ngstate/cmd"

func main() {
	cmd.Execute()
}
