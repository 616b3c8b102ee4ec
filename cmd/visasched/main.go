package main

import "github.com/example/visa-scheduler/cmd"

func main() {
	cmd.Execute()
}
