package main

import "github.com/gpuemu/mme/cmd"

func main() {
	cmd.Execute()
}
