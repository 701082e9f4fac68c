// Package export encodes projected records into downloadable artifacts.
package export

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/agentic-research/scenex/api"
)

var (
	// ErrArtifactTooLarge is returned when an encoded artifact exceeds the
	// configured byte limit. No artifact is produced.
	ErrArtifactTooLarge = errors.New("artifact exceeds size limit")
	// ErrNoRecords is returned by writers finished without any record.
	ErrNoRecords = errors.New("no records to write")
)

// TimestampLayout is the timestamp format used in artifact filenames.
const TimestampLayout = "20060102T150405"

const (
	ContentTypeJSON = "application/json"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// CategoryCount is one row of the category distribution.
type CategoryCount struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Percent  float64 `json:"percent"`
}

// Metadata describes an export run. It heads JSON artifacts and fills the
// workbook summary sheet.
type Metadata struct {
	ModelName          string          `json:"modelName"`
	Source             string          `json:"urn,omitempty"`
	ExportDate         time.Time       `json:"exportDate"`
	Mode               api.Mode        `json:"mode"`
	Tier               api.Tier        `json:"policy"`
	TotalNodes         int             `json:"totalNodes"`
	ProcessedNodes     int             `json:"processedNodes"`
	TotalObjects       int             `json:"totalObjects"`
	SuccessRatePercent int             `json:"successRatePercent"`
	ProcessingTimeMs   int64           `json:"processingTimeMs"`
	Throughput         float64         `json:"throughput"`
	SampleSize         int             `json:"sampleSize,omitempty"`
	Columns            int             `json:"columns,omitempty"`
	TopCategories      int             `json:"topCategories,omitempty"`
	Partitions         int             `json:"partitions,omitempty"`
	Categories         []CategoryCount `json:"categories,omitempty"`
}

// Artifact is an encoded export ready to be saved or served.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
	Metadata    Metadata
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// SanitizeModelName lowercases name and replaces every character outside
// [a-z0-9] with "_". An empty name becomes "model".
func SanitizeModelName(name string) string {
	if name == "" {
		return "model"
	}
	return nonAlnum.ReplaceAllString(strings.ToLower(name), "_")
}

// Filename is {sanitized model}_{objects}obj_{timestamp}.{ext}, with the
// timestamp taken in UTC.
func Filename(modelName string, objects int, ts time.Time, format api.Format) string {
	return fmt.Sprintf("%s_%dobj_%s.%s",
		SanitizeModelName(modelName), objects, ts.UTC().Format(TimestampLayout), format.Extension())
}

func checkSize(data []byte, maxBytes int64) error {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrArtifactTooLarge, len(data), maxBytes)
	}
	return nil
}
