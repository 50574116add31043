package main

import "github.com/ppiankov/storyforge/internal/cli"

func main() {
	cli.Execute()
}
