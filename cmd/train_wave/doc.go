// Package main trains the network basis of the two dimensional wave equation started by a
// Gaussian impulse on a square membrane with fixed edges.
package main
