package main

import (
	"price-resolver/internal/cli"
)

func main() {
	cli.Execute()
}
