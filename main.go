package main

import "rollcall/cmd"

func main() {
	cmd.Execute()
}
