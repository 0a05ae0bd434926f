package main

import "github.com/neurlang/pinn/pde/wave"
import "github.com/neurlang/pinn/runner"

func main() {
	runner.Main(wave.Name, true)
}
