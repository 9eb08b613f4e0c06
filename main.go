package main

import "github.com/Digital-Shane/show-score/internal/cmd"

func main() {
	cmd.Execute()
}
