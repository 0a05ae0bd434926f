// Package main trains the network basis of a coupled two mass spring oscillator.
package main
