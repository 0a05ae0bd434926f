package main

import "github.com/neurlang/pinn/pde/helmholtz"
import "github.com/neurlang/pinn/runner"

func main() {
	runner.Main(helmholtz.Name, true)
}
