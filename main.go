package main

import "github.com/backlogsmith/backlogsmith/cmd"

func main() {
	cmd.Execute()
}
