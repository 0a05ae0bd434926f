package main

import "github.com/neurlang/pinn/pde/systems"
import "github.com/neurlang/pinn/runner"

func main() {
	runner.Main(systems.Name, true)
}
