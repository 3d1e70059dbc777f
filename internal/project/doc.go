// Package project owns the XML project document that ties a confinement
// analysis together.
//
// Responsibilities:
//   - Create, load and save the document (indented XML).
//   - Register input datasets and realizations, and the analyses run on them.
//   - Resolve project-relative dataset paths without leaving the project
//     folder.
//
// Key types: Project, Input, Realization, Analysis.
//
// Dependency rule: project knows nothing about geometry. It stores paths
// and parameters; internal/pipeline reads and writes the datasets.
package project
