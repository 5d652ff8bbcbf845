// Package stats provides the numeric primitives shared by the health
// monitor and metrics collector: capped sample buffers, sorted-index
// percentile lookup, and two-slice trend detection.
//
// Percentiles are computed by sorted-index lookup (index = floor(n*q)),
// never interpolation, so results are exact and reproducible in tests.
package stats
