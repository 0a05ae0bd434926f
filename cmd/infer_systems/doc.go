// Package main transfers a trained oscillator basis to new masses and springs, compares the
// trajectories with the matrix exponential solution and plots the principal components of the
// hidden features.
//
// Example:
//
//	infer_systems --dstmodel systems.json.zlib --method normal --method lstsq --output plots
package main
