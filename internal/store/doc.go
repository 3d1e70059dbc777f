// Package store owns the optional SQLite results database.
//
// Responsibilities:
//   - Open the database with the connection pragmas and apply the embedded
//     migrations.
//   - Record each run (UUID, stage, parameters, status) and the margins,
//     segments, seeds, window values and segmentation units it produced.
//   - Answer the summary queries used by reports and the CLI.
//
// Key types: Store, RunRecord, WindowValue.
//
// Dependency rule: store reads result types from confinement,
// segmentation and movingwindow but is never imported by them.
package store
