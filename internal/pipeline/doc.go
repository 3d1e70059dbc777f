// Package pipeline is the composition root of the toolkit.
//
// Responsibilities:
//   - Load the input datasets and check their contracts before any
//     geometry runs.
//   - Run the stages in order (margins, banks, attribute, then segments or
//     window) and write their outputs.
//   - Wrap every failure in a StageError naming the stage and dataset.
//   - Record runs in the optional results store and run metadata.
//   - Run a project realization end to end.
//
// Key types: Runner, StageError.
//
// Dependency rule: pipeline may import every internal package; none of
// them imports pipeline.
package pipeline
