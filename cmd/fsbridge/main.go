package main

import "github.com/fsbridge/fsbridge/cmd/fsbridge/cmd"

func main() {
	cmd.Execute()
}
