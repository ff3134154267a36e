package storage

import (
	"fmt"

	"github.com/uservlrz/client/models"
)

// CalculateResourcePaths generates all available resource URIs for a stored batch
func CalculateResourcePaths(batchID string, report *models.BatchReport) []string {
	resourcePaths := []string{
		fmt.Sprintf("batch://%s", batchID),
	}

	for _, f := range report.Files {
		resourcePaths = append(resourcePaths, fmt.Sprintf("batch://%s/files/%d", batchID, f.Index))
	}

	return resourcePaths
}
