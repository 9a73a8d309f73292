package main

import "github.com/hanane-support/H-ATS/cmd"

func main() {
	cmd.Execute()
}
