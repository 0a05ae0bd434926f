// Package main transfers a trained wave basis to a new wave speed, optionally driven by a
// Gaussian source, and plots the solution snapshots.
package main
