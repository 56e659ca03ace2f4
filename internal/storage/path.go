package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var (
	pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)
	digestPattern        = regexp.MustCompile(`^[a-f0-9]{12,64}$`)
)

// BuildSnapshotPath returns the object key of a dataset's parquet snapshot.
// Snapshots are content addressed so identical datasets share one object.
func BuildSnapshotPath(datasetName, digest string) (string, error) {
	if err := validatePathComponent(datasetName, "dataset name"); err != nil {
		return "", err
	}
	if !digestPattern.MatchString(digest) {
		return "", fmt.Errorf("invalid snapshot digest: %q", digest)
	}
	return path.Join(
		"datasets",
		datasetName,
		fmt.Sprintf("snapshot-%s.parquet", digest),
	), nil
}

// SnapshotPrefix is the key prefix shared by every snapshot of a dataset.
func SnapshotPrefix(datasetName string) (string, error) {
	if err := validatePathComponent(datasetName, "dataset name"); err != nil {
		return "", err
	}
	return path.Join("datasets", datasetName) + "/", nil
}

// IsSnapshotKey reports whether key names a snapshot object.
func IsSnapshotKey(key string) bool {
	base := path.Base(key)
	if !strings.HasPrefix(base, "snapshot-") || !strings.HasSuffix(base, ".parquet") {
		return false
	}
	return digestPattern.MatchString(strings.TrimSuffix(strings.TrimPrefix(base, "snapshot-"), ".parquet"))
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
