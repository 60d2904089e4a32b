package main

import "github.com/emrgen/knowledge/cmd"

func main() {
	cmd.Execute()
}
