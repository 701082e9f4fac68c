package main

import "github.com/agentic-research/scenex/cmd"

func main() {
	cmd.Execute()
}
