// Package analysis provides in-process alignment and scoring collaborators
// for the pipeline. They are heuristics, suitable for offline work and tests;
// a model-backed analyser can be reached through the daemon package instead.
package analysis
