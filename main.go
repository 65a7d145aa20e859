package main

import "github.com/companionlabs/memgraph/cmd"

func main() {
	cmd.Execute()
}
