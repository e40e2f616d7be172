package main

import "github.com/ppiankov/pywiz/internal/cli"

func main() {
	cli.Execute()
}
