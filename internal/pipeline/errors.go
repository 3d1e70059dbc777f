package pipeline

import (
	"errors"
	"fmt"
	"sort"
)

// Stage names used in errors, logs and the results store.
const (
	StageLoad      = "load"
	StageMargins   = "margins"
	StageBanks     = "banks"
	StageAttribute = "attribute"
	StageSegments  = "segments"
	StageWindow    = "window"
	StageReport    = "report"
	StageWrite     = "write"
	StageProject   = "project"
	StageStore     = "store"
)

// StageError is a fatal failure of one stage on one dataset.
type StageError struct {
	Stage   string
	Dataset string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q (dataset %s): %v", e.Stage, e.Dataset, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage, dataset string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Dataset: dataset, Err: err}
}

func sortedParams(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
