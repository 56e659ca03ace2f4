package api

import (
	"net/http"

	"github.com/duckmesh/duckchat/internal/dataset"
)

// DatasetInfo describes the loaded dataset to API clients.
type DatasetInfo struct {
	Name        string          `json:"name"`
	Fields      []dataset.Field `json:"fields"`
	RowCount    int             `json:"row_count"`
	SampleRows  string          `json:"sample_rows"`
	SnapshotKey string          `json:"snapshot_key,omitempty"`
	Digest      string          `json:"digest,omitempty"`
}

func NewDatasetInfo(ds *dataset.Dataset, schema dataset.Schema, datasetContext dataset.Context, snapshot dataset.Snapshot) *DatasetInfo {
	return &DatasetInfo{
		Name:        ds.Name,
		Fields:      schema.Fields,
		RowCount:    ds.RowCount(),
		SampleRows:  datasetContext.SampleRows,
		SnapshotKey: snapshot.ObjectKey,
		Digest:      snapshot.Digest,
	}
}

func handleDataset(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Dataset == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATASET_NOT_CONFIGURED", "dataset is not loaded", false, nil)
		return
	}
	if !authorized(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, deps.Dataset)
}
