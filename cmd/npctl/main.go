package main

import "github.com/example/numberpro/cmd"

func main() {
	cmd.Execute()
}
