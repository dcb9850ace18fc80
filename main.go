package main

import "github.com/agentpm/agentpm/cmd"

func main() {
	cmd.Execute()
}
