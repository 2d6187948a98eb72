package main

import "github.com/vietddude/inviter/internal/cli"

func main() {
	cli.Execute()
}
