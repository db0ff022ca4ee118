package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/format"
)

type formatView struct {
	Key          string              `json:"key"`
	Name         string              `json:"name"`
	Kind         string              `json:"kind"`
	RecordType   export.RecordType   `json:"record_type"`
	Delimiter    string              `json:"delimiter"`
	Enclosure    string              `json:"enclosure"`
	RowMode      format.RowMode      `json:"row_mode,omitempty"`
	ItemEncoding format.ItemEncoding `json:"item_encoding,omitempty"`
	Columns      format.Columns      `json:"columns"`
	Active       bool                `json:"active"`
}

type activeFormatRequest struct {
	Key string `json:"key" validate:"required,max=200"`
}

func viewFormat(d *format.Definition, active string) formatView {
	v := formatView{
		Key:        d.Key,
		Name:       d.Name,
		Kind:       d.Kind.String(),
		RecordType: d.RecordType,
		Delimiter:  string(d.Delimiter),
		Enclosure:  string(d.Enclosure),
		Columns:    d.Columns,
		Active:     d.Key == active,
	}
	if d.RecordType.HasSubItems() {
		v.RowMode = d.RowMode
		v.ItemEncoding = d.ItemEncoding
	}
	return v
}

func recordTypeParam(r *http.Request) (export.RecordType, error) {
	t, err := export.ParseRecordType(chi.URLParam(r, "recordType"))
	if err != nil {
		return "", badRequest("record_type", err.Error())
	}
	return t, nil
}

func (s *Server) handleListFormats(w http.ResponseWriter, r *http.Request) {
	t, err := recordTypeParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	active, err := s.deps.Formats.ActiveFormat(r.Context(), t)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defs, err := s.deps.Formats.ListFormats(r.Context(), t)
	if err != nil {
		respondError(w, r, err)
		return
	}
	views := make([]formatView, len(defs))
	for i, d := range defs {
		views[i] = viewFormat(d, active)
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": active, "formats": views})
}

func (s *Server) handleSaveFormat(w http.ResponseWriter, r *http.Request) {
	t, err := recordTypeParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var cf format.CustomFormat
	if err := decodeJSON(w, r, &cf); err != nil {
		respondError(w, r, err)
		return
	}
	if cf.RecordType != "" && cf.RecordType != t {
		respondError(w, r, badRequest("record_type", "record_type does not match the path"))
		return
	}
	cf.RecordType = t
	cf.Key = strings.TrimSpace(cf.Key)

	saved, err := s.deps.Formats.SaveCustomFormat(r.Context(), &cf)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleDeleteFormat(w http.ResponseWriter, r *http.Request) {
	t, err := recordTypeParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.deps.Formats.DeleteCustomFormat(r.Context(), t, chi.URLParam(r, "key")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetActiveFormat(w http.ResponseWriter, r *http.Request) {
	t, err := recordTypeParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req activeFormatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.deps.Formats.SetActiveFormat(r.Context(), t, req.Key); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active": req.Key})
}
