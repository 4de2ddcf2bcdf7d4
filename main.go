package main

import "github.com/mathgene/genealogy-crawler/cmd"

func main() {
	cmd.Execute()
}
