package main

import "textanywhere/cmd"

func main() {
	cmd.Execute()
}
