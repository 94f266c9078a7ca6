package main

import "github.com/MeKo-Tech/scanqa/cmd/scanqa/cmd"

func main() {
	cmd.Execute()
}
