package main

import "ugc-forge/cmd"

func main() {
	cmd.Execute()
}
