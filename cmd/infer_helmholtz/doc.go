// Package main transfers a trained Helmholtz basis to a new forcing by solving the output
// weights in closed form, and plots prediction, reference and error.
package main
