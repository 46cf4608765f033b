package main

import "github.com/polyflip/updown-arb/cmd"

func main() {
	cmd.Execute()
}
