// Package benchmark generates the driving sequences used to train and score
// reservoirs: NARMA systems, parity, xor and normalised time series.
package benchmark
