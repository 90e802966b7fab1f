package main

import (
	"apibench/cmd"
)

func main() {
	cmd.Execute()
}
