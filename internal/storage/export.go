package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/odeguard/internal/dynamo"
)

type ExportData struct {
	RunMetadata
	Steps  int         `json:"steps"`
	Times  []float64   `json:"times"`
	States [][]float64 `json:"states"`
}

// Export writes a stored run with its trajectory as indented JSON.
func (s *Store) Export(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	states, times, err := s.LoadStates(runID)
	if err != nil {
		return err
	}
	return ExportJSON(w, meta, states, times)
}

func ExportJSON(w io.Writer, meta *RunMetadata, states []dynamo.State, times []float64) error {
	data := ExportData{
		RunMetadata: *meta,
		Steps:       len(times),
		Times:       times,
		States:      make([][]float64, len(states)),
	}
	for i, s := range states {
		data.States[i] = s
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
