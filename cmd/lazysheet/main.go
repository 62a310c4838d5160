package main

import "github.com/rebeliceyang/lazysheet/internal/cli"

func main() {
	cli.Execute()
}
