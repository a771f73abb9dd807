// Package codec implements the pluggable Codec boundary (spec §6):
// parsing and rendering the Lmap config/state/report documents. The
// runtime (internal/model, internal/runner) depends only on the data
// model, never on this package, per §6's "the runtime depends only on
// the data model, not on the codec." A single JSON implementation is
// provided, grounded in the JSON dialect §6 names as normative
// alongside the YANG-namespaced XML dialect (XML is not implemented
// here — see DESIGN.md).
package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/lmap-agent/lmapd/internal/model"
)

// Codec parses and renders the three Lmap document kinds over an
// io.Reader/io.Writer pair, keeping the runtime free of any
// serialization dependency.
type Codec interface {
	DecodeConfig(r io.Reader) (*model.Lmap, error)
	EncodeConfig(w io.Writer, lmap *model.Lmap) error
	EncodeState(w io.Writer, lmap *model.Lmap) error
	EncodeReport(w io.Writer, results []*model.Result) error
}

// JSON implements Codec using the JSON dialect of the ietf-lmap-control
// / ietf-lmap-report data models referenced in §6.
type JSON struct {
	Indent string
}

// NewJSON returns a JSON codec that pretty-prints with a two-space indent.
func NewJSON() *JSON { return &JSON{Indent: "  "} }

func (j *JSON) encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", j.Indent)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("codec: encode: %w", err)
	}
	return nil
}

// DecodeConfig parses a `{"lmap": {...}}` document into a model.Lmap.
func (j *JSON) DecodeConfig(r io.Reader) (*model.Lmap, error) {
	var doc configDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("codec: decode config: %w", err)
	}
	return doc.Lmap.toModel()
}

// EncodeConfig renders lmap as a `{"lmap": {...}}` document.
func (j *JSON) EncodeConfig(w io.Writer, lmap *model.Lmap) error {
	return j.encode(w, configDocument{Lmap: fromModel(lmap)})
}

// EncodeState renders lmap's read-only operational fields as a
// `{"lmap-state": {...}}` document.
func (j *JSON) EncodeState(w io.Writer, lmap *model.Lmap) error {
	return j.encode(w, stateDocument{LmapState: stateFromModel(lmap)})
}

// EncodeReport renders results as a `{"report": {...}}` document.
func (j *JSON) EncodeReport(w io.Writer, results []*model.Result) error {
	doc := reportDocument{Report: reportBody{Results: make([]resultDTO, 0, len(results))}}
	for _, r := range results {
		doc.Report.Results = append(doc.Report.Results, resultFromModel(r))
	}
	return j.encode(w, doc)
}
