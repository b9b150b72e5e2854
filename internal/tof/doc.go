// Package tof owns the time-of-flight grid data model and the per-frame
// signal processing that turns a raw sensor frame into a single focus point.
//
// Responsibilities: grid types, startup calibration, per-cell classification
// against the calibration (Adjust), and neighbourhood-scored focus selection
// (Select). Key types: Grid, RawCell, Calibration, AdjustedCell, POI.
//
// Everything in this package is pure: no I/O, no clocks, no logging. The
// polling loop and the collaborators live in internal/pipeline.
package tof
