// Package report renders moving-window results as longitudinal profiles.
//
// Responsibilities:
//   - Group window values into one profile per route and window size.
//   - Summarise each profile (mean and standard deviation of the ratios).
//   - Write a PNG per route (gonum/plot) and one interactive HTML page
//     (go-echarts) for the whole run.
//
// Key types: Profile, Summary.
//
// Dependency rule: report only reads movingwindow results; it writes
// through fsutil and never touches the datasets.
package report
