package main

import "github.com/kozaktomas/sightmatch/cmd"

func main() {
	cmd.Execute()
}
