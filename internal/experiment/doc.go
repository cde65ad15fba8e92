// Package experiment trains and scores reservoirs against benchmarks:
// normalised error, single trials, batches of trials and comparisons.
package experiment
