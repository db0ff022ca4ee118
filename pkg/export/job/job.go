package job

import (
	"encoding/json"
	"fmt"
	"time"

	"mercator-hq/courier/pkg/export"
)

// Status is the processing state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further processing happens in this state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TransferStatus is the delivery state of a completed job. The zero value
// means no transfer was requested.
type TransferStatus string

const (
	TransferNone       TransferStatus = ""
	TransferQueued     TransferStatus = "queued"
	TransferProcessing TransferStatus = "processing"
	TransferCompleted  TransferStatus = "completed"
	TransferFailed     TransferStatus = "failed"
)

// MarshalJSON encodes TransferNone as null.
func (s TransferStatus) MarshalJSON() ([]byte, error) {
	if s == TransferNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON decodes null as TransferNone.
func (s *TransferStatus) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = TransferNone
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = TransferStatus(v)
	return nil
}

// Method is the delivery method of a job's file.
type Method string

const (
	MethodLocal    Method = "local"
	MethodEmail    Method = "email"
	MethodHTTPPost Method = "http_post"
	MethodFTP      Method = "ftp"
	MethodFTPS     Method = "ftps"
	MethodSFTP     Method = "sftp"
)

// Methods lists every delivery method.
func Methods() []Method {
	return []Method{MethodLocal, MethodEmail, MethodHTTPPost, MethodFTP, MethodFTPS, MethodSFTP}
}

// ParseMethod parses s. An empty string is MethodLocal.
func ParseMethod(s string) (Method, error) {
	if s == "" {
		return MethodLocal, nil
	}
	for _, m := range Methods() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown transfer method %q", s)
}

// Transfers reports whether the method delivers the file anywhere.
func (m Method) Transfers() bool {
	return m != "" && m != MethodLocal
}

// Invocation records what started a job: a person or the automation.
type Invocation string

const (
	InvocationManual Invocation = "manual"
	InvocationAuto   Invocation = "auto"
)

// Valid reports whether i is a known invocation.
func (i Invocation) Valid() bool {
	return i == InvocationManual || i == InvocationAuto
}

// Options are per-job output settings.
type Options struct {
	IncludeHeader bool `json:"include_header"`
	AddBOM        bool `json:"add_bom"`

	// MarkExported flags every exported record once the job completes.
	MarkExported bool `json:"mark_exported"`
}

// Job is one execution of an export for a fixed identifier list.
type Job struct {
	ID         string              `json:"id"`
	RecordType export.RecordType   `json:"record_type"`
	FormatKey  string              `json:"format_key"`
	Method     Method              `json:"method"`
	Invocation Invocation          `json:"invocation"`
	IDs        []export.Identifier `json:"ids"`
	Options    Options             `json:"options"`

	Status          Status         `json:"status"`
	TransferStatus  TransferStatus `json:"transfer_status"`
	TransferMessage string         `json:"transfer_message,omitempty"`
	Error           string         `json:"error,omitempty"`

	FileName     string `json:"file_name"`
	Cursor       int    `json:"cursor"`
	BytesWritten int64  `json:"bytes_written"`
	RowsWritten  int    `json:"rows_written"`
	Skipped      int    `json:"skipped"`

	CancelRequested bool      `json:"cancel_requested,omitempty"`
	LockedBy        string    `json:"-"`
	LockedUntil     time.Time `json:"-"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of j.
func (j *Job) Clone() *Job {
	c := *j
	c.IDs = append([]export.Identifier(nil), j.IDs...)
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Done reports whether every identifier has been consumed.
func (j *Job) Done() bool {
	return j.Cursor >= len(j.IDs)
}

// Progress returns the consumed fraction of the identifier list.
func (j *Job) Progress() float64 {
	if len(j.IDs) == 0 {
		return 1
	}
	return float64(j.Cursor) / float64(len(j.IDs))
}

// Locked reports whether a worker holds an unexpired claim at now.
func (j *Job) Locked(now time.Time) bool {
	return j.LockedBy != "" && now.Before(j.LockedUntil)
}

// Filter narrows Store.List.
type Filter struct {
	RecordType    export.RecordType
	Statuses      []Status
	CreatedBefore *time.Time
	Limit         int
}

func (f Filter) match(j *Job) bool {
	if f.RecordType != "" && j.RecordType != f.RecordType {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if j.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.CreatedBefore != nil && !j.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}
