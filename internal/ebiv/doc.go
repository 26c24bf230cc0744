// Package ebiv is the root of the event-based imaging velocimetry (EBIV)
// data model.
//
// Events flow through the sub-packages in one direction:
//
//	events    -> recording-wide event arrays (EventStore)
//	sample    -> space-time sub-volumes (Sample) and binary time volumes
//	correlate -> sum-of-correlation estimator
//	warp      -> contrast maximisation (IWE + reward functions + scanner)
//	peak      -> sub-grid peak refinement shared by both estimators
//	field     -> velocity field assembly, outlier detection, interpolation
//	pipeline  -> tile scan driver across a recording
//
// Dependency rule: a package may only import packages listed above it,
// except peak which is a leaf used by correlate and warp. This package
// only holds the error taxonomy shared by all layers.
package ebiv
