package main

import "github.com/angelstreet/navtree/cmd"

func main() {
	cmd.Execute()
}
