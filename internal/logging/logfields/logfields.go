// Package logfields defines the structured logging fields used across packages
package logfields

const (
	// LogSubsys is the field denoting the subsystem when logging
	LogSubsys = "subsys"

	// Module is the driver module being processed
	Module = "module"

	// Stage is the pipeline stage (scan, tree, rewrite, merge, emit)
	Stage = "stage"

	// Artifact is the name of a generated artifact
	Artifact = "artifact"

	// Path is a file system path
	Path = "path"

	// Diagnostics is a count of diagnostics
	Diagnostics = "diagnostics"

	// Parameters is a count of parameters
	Parameters = "parameters"

	// Status is a module outcome status
	Status = "status"

	// Duration is the elapsed time of an operation
	Duration = "duration"
)
