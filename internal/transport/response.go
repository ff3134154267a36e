package transport

import (
	"fmt"
	"time"

	"github.com/uservlrz/client/models"
)

// Extraction methods reported by the service
const (
	MethodDirect      = "direto"
	MethodUnprotected = "desprotegido"
	MethodRepaired    = "reparado"
	MethodGSRepaired  = "gs_reparado"
	MethodParts       = "partes"
	MethodFailed      = "falha"
)

var methodDescriptions = map[string]string{
	MethodDirect:      "direct processing",
	MethodUnprotected: "protection removed",
	MethodRepaired:    "structure repaired",
	MethodGSRepaired:  "advanced repair",
	MethodParts:       "processed in parts",
	MethodFailed:      "processing failed",
}

// DescribeMethod returns a human description of an extraction method
func DescribeMethod(method string) string {
	if d, ok := methodDescriptions[method]; ok {
		return d
	}
	return method
}

func adjusted(method string) bool {
	switch method {
	case MethodUnprotected, MethodRepaired, MethodGSRepaired, MethodParts:
		return true
	}
	return false
}

// toAck validates a service response and stamps the summaries with the file
// and patient names.
func toAck(fileName string, resp *models.UploadResponse, chunked bool) (*models.UploadAck, error) {
	if resp == nil || len(resp.Summaries) == 0 {
		return nil, &Error{FileName: fileName, Chunk: -1, Message: ErrNoResults.Error(), Err: ErrNoResults}
	}
	if resp.ExtractionMethod == MethodFailed {
		return nil, &Error{FileName: fileName, Chunk: -1, Message: ErrExtractionFailed.Error(), Err: ErrExtractionFailed}
	}

	ack := &models.UploadAck{
		FileName:         fileName,
		PatientName:      resp.PatientName,
		ExtractionMethod: resp.ExtractionMethod,
		Summaries:        make([]models.Summary, len(resp.Summaries)),
		Chunked:          chunked,
		ProcessedAt:      time.Now(),
	}
	for i, s := range resp.Summaries {
		if s.FileName == "" {
			s.FileName = fileName
		}
		if s.PatientName == "" {
			s.PatientName = resp.PatientName
		}
		ack.Summaries[i] = s
	}
	if adjusted(resp.ExtractionMethod) {
		ack.Warnings = append(ack.Warnings,
			fmt.Sprintf("document processed with adjustments (%s)", DescribeMethod(resp.ExtractionMethod)))
	}
	return ack, nil
}
