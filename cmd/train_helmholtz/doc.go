// Package main trains the network basis of the two dimensional Helmholtz problem on a
// family of sinusoidal forcings and writes the best checkpoint to -dstmodel.
//
// Example:
//
//	train_helmholtz --niters 40000 --hidden_size 100 --dstmodel helmholtz.json.zlib
package main
