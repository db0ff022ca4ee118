package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/job"
	"mercator-hq/courier/pkg/telemetry/logging"
)

// exportRequest is the body of POST /api/exports. Records are selected by
// encoded identifiers, or by Query when IDs is empty.
type exportRequest struct {
	RecordType    string        `json:"record_type" validate:"required,oneof=orders customers"`
	IDs           []string      `json:"ids" validate:"omitempty,dive,required"`
	Query         *queryRequest `json:"query,omitempty"`
	Format        string        `json:"format,omitempty" validate:"omitempty,max=200"`
	Method        string        `json:"method,omitempty" validate:"omitempty,oneof=local email http_post ftp ftps sftp"`
	IncludeHeader *bool         `json:"include_header,omitempty"`
	AddBOM        *bool         `json:"add_bom,omitempty"`
	MarkExported  bool          `json:"mark_exported,omitempty"`
}

type queryRequest struct {
	Statuses []string   `json:"statuses,omitempty"`
	Since    *time.Time `json:"since,omitempty"`
	Until    *time.Time `json:"until,omitempty"`
	OnlyNew  bool       `json:"only_new,omitempty"`
	Limit    int        `json:"limit,omitempty" validate:"min=0"`
}

type transferRequest struct {
	Method string `json:"method,omitempty" validate:"omitempty,oneof=email http_post ftp ftps sftp"`
}

// nothingToExport is the 200 body when no records were selected.
type nothingToExport struct {
	Result string `json:"result"`
}

// jobView adds derived fields to a job for API responses.
type jobView struct {
	*job.Job
	Progress float64 `json:"progress"`
	Done     bool    `json:"done"`
}

func viewJob(j *job.Job) jobView {
	return jobView{Job: j, Progress: j.Progress(), Done: j.Done()}
}

func (s *Server) handleStartExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		respondError(w, r, err)
		return
	}

	start, err := s.startRequest(r, req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	j, err := s.deps.Jobs.StartExport(r.Context(), start)
	if errors.Is(err, export.ErrNothingToExport) {
		writeJSON(w, http.StatusOK, nothingToExport{Result: "nothing_to_export"})
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/exports/"+j.ID)
	writeJSON(w, http.StatusAccepted, viewJob(j))
}

// startRequest turns an API request into a job.StartRequest, resolving a
// query into identifiers when needed.
func (s *Server) startRequest(r *http.Request, req exportRequest) (job.StartRequest, error) {
	t := export.RecordType(req.RecordType)
	ids, err := export.ParseIdentifiers(req.IDs)
	if err != nil {
		return job.StartRequest{}, badRequest("ids", err.Error())
	}
	if len(ids) == 0 && req.Query != nil {
		if s.deps.Records == nil {
			return job.StartRequest{}, badRequest("query", "record queries are not available")
		}
		ids, err = s.deps.Records.QueryIDs(r.Context(), t, export.QueryFilter{
			Statuses: req.Query.Statuses,
			Since:    req.Query.Since,
			Until:    req.Query.Until,
			OnlyNew:  req.Query.OnlyNew,
			Limit:    req.Query.Limit,
		})
		if err != nil {
			return job.StartRequest{}, err
		}
	}

	opts := job.Options{
		IncludeHeader: s.deps.IncludeHeader,
		AddBOM:        s.deps.AddBOM,
		MarkExported:  req.MarkExported,
	}
	if req.IncludeHeader != nil {
		opts.IncludeHeader = *req.IncludeHeader
	}
	if req.AddBOM != nil {
		opts.AddBOM = *req.AddBOM
	}

	return job.StartRequest{
		RecordType: t,
		IDs:        ids,
		FormatKey:  req.Format,
		Method:     job.Method(req.Method),
		Invocation: job.InvocationManual,
		Options:    opts,
	}, nil
}

func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	f, err := parseJobFilter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	jobs, err := s.deps.Jobs.ListJobs(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	views := make([]jobView, len(jobs))
	for i, j := range jobs {
		views[i] = viewJob(j)
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views, "count": len(views)})
}

func parseJobFilter(r *http.Request) (job.Filter, error) {
	q := r.URL.Query()
	var f job.Filter
	if v := q.Get("record_type"); v != "" {
		t, err := export.ParseRecordType(v)
		if err != nil {
			return f, badRequest("record_type", err.Error())
		}
		f.RecordType = t
	}
	if v := q.Get("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			switch status := job.Status(strings.TrimSpace(st)); status {
			case job.StatusQueued, job.StatusProcessing, job.StatusCompleted, job.StatusFailed:
				f.Statuses = append(f.Statuses, status)
			default:
				return f, badRequest("status", fmt.Sprintf("unknown status %q", st))
			}
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, badRequest("limit", "limit must be a non-negative integer")
		}
		f.Limit = n
	}
	return f, nil
}

func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	j, err := s.deps.Jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewJob(j))
}

func (s *Server) handleDeleteExport(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Jobs.DeleteJob(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	j, err := s.deps.Jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if j.Status != job.StatusCompleted {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: fmt.Sprintf("export is %s", j.Status),
			Code:  "job_not_completed",
		})
		return
	}
	path, err := s.deps.Jobs.FilePath(j)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", j.FileName))
	http.ServeFile(w, r, path)
}

func (s *Server) handleTransferExport(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		if err := s.validate.Struct(&req); err != nil {
			respondError(w, r, err)
			return
		}
	}

	ctx := logging.WithJobID(r.Context(), chi.URLParam(r, "id"))
	j, err := s.deps.Jobs.GetJob(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if j.Status != job.StatusCompleted {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: fmt.Sprintf("export is %s, only completed exports can be transferred", j.Status),
			Code:  "job_not_completed",
		})
		return
	}
	method := job.Method(req.Method)
	if method == "" && !j.Method.Transfers() {
		respondError(w, r, badRequest("method", "job has no transfer method, pass one explicitly"))
		return
	}

	j, err = s.deps.Jobs.Transfer(ctx, j.ID, method)
	if err != nil {
		var terr *export.TransferError
		if errors.As(err, &terr) && j != nil {
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"job":   viewJob(j),
				"error": ErrorResponse{Error: terr.Error(), Code: "transfer_failed"},
			})
			return
		}
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewJob(j))
}
