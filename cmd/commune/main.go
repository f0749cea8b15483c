package main

import "github.com/vietddude/commune/internal/cli"

func main() {
	cli.Execute()
}
