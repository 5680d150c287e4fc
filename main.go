package main

import "github.com/Speshl/gorrc_nav/internal/cli"

func main() {
	cli.Execute()
}
