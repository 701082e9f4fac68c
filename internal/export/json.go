package export

import (
	"encoding/json"
	"fmt"

	"github.com/agentic-research/scenex/api"
	"github.com/agentic-research/scenex/internal/projector"
)

// Document is the JSON artifact layout.
type Document struct {
	Metadata Metadata                  `json:"metadata"`
	Objects  []*projector.NestedObject `json:"objects"`
}

// JSONWriter accumulates nested objects and encodes them with metadata.
type JSONWriter struct {
	objects  []*projector.NestedObject
	maxBytes int64
}

func NewJSONWriter(maxBytes int64) *JSONWriter {
	return &JSONWriter{maxBytes: maxBytes}
}

func (w *JSONWriter) Add(objs ...*projector.NestedObject) {
	w.objects = append(w.objects, objs...)
}

func (w *JSONWriter) Len() int { return len(w.objects) }

// Finish encodes the document. meta.TotalObjects is set from the objects
// added.
func (w *JSONWriter) Finish(meta Metadata) (*Artifact, error) {
	if len(w.objects) == 0 {
		return nil, ErrNoRecords
	}
	meta.TotalObjects = len(w.objects)
	data, err := json.MarshalIndent(Document{Metadata: meta, Objects: w.objects}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	if err := checkSize(data, w.maxBytes); err != nil {
		return nil, err
	}
	return &Artifact{
		Filename:    Filename(meta.ModelName, meta.TotalObjects, meta.ExportDate, api.FormatJSON),
		ContentType: ContentTypeJSON,
		Data:        data,
		Metadata:    meta,
	}, nil
}

// WriteJSON encodes objects in one call.
func WriteJSON(objects []*projector.NestedObject, meta Metadata, maxBytes int64) (*Artifact, error) {
	w := NewJSONWriter(maxBytes)
	w.Add(objects...)
	return w.Finish(meta)
}
