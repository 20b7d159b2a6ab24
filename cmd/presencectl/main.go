package main

import "go.pilab.hu/presence/cmd/presencectl/cmd"

func main() {
	cmd.Execute()
}
