package main

import "github.com/Digital-Shane/sora/internal/cmd"

func main() {
	cmd.Execute()
}
