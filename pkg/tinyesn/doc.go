// Package tinyesn is the public client for running echo state network
// experiments and managing their persisted results.
package tinyesn
