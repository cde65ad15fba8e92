// Package esn implements an echo state network: a fixed, randomly wired
// recurrent reservoir driven by an input signal, with a linear readout that
// is the only trained component.
//
// A Reservoir is built once from a Config (topology wiring, spectral
// scaling, random weight draws), trained with Train and evaluated with Test.
// Instances are not safe for concurrent use; independent experiments must
// use independent reservoirs.
package esn
