package web

// errors.go maps pipeline outcomes onto HTTP responses.
//
// Every upload response, success or failure, has the same JSON shape. The
// HTTP status is derived from the error kind:
//
//	validation           400
//	parse                422
//	too many uploads     429
//	body over the limit  413
//	schema/load/other    500

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/dataloader/internal/core"
	"github.com/JonMunkholm/dataloader/internal/ingest"
	"github.com/JonMunkholm/dataloader/internal/logging"
)

// UploadResponse is the JSON body of POST /api/upload.
type UploadResponse struct {
	Status         core.Status    `json:"status"`
	LoadID         string         `json:"loadId,omitempty"`
	Table          string         `json:"table,omitempty"`
	Message        string         `json:"message"`
	ElapsedSeconds float64        `json:"elapsedSeconds"`
	Rows           int            `json:"rows"`
	Chunks         int            `json:"chunks"`
	Code           string         `json:"code,omitempty"`
	Kind           string         `json:"kind,omitempty"`
	Action         string         `json:"action,omitempty"`
	Failures       []ChunkFailure `json:"failures,omitempty"`
}

// ChunkFailure describes one chunk that did not land.
type ChunkFailure struct {
	Chunk int    `json:"chunk"`
	Rows  int    `json:"rows"`
	Error string `json:"error"`
}

// statusFor picks the HTTP status for a failed upload.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ingest.ErrTooManyUploads):
		return http.StatusTooManyRequests
	}

	switch core.KindOf(err) {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindParse:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func newUploadResponse(res *core.Result) UploadResponse {
	resp := UploadResponse{
		Status:         res.Status,
		LoadID:         res.LoadID,
		Table:          res.Table,
		Message:        res.Message(),
		ElapsedSeconds: res.Elapsed.Seconds(),
		Rows:           res.Rows,
		Chunks:         res.Chunks,
	}
	if res.Err != nil {
		msg := core.MapError(res.Err)
		resp.Code = msg.Code
		resp.Action = msg.Action
		resp.Kind = core.KindOf(res.Err).String()
	}
	for _, f := range res.Failures() {
		resp.Failures = append(resp.Failures, ChunkFailure{Chunk: f.Index, Rows: f.Rows, Error: f.Err.Error()})
	}
	return resp
}

// respondResult writes the outcome of an upload.
func respondResult(w http.ResponseWriter, r *http.Request, res *core.Result) {
	status := statusFor(res.Err)
	if res.Err != nil {
		logging.FromContext(r.Context()).Error("upload failed",
			"status", status,
			"load_id", res.LoadID,
			"table", res.Table,
			"code", core.MapError(res.Err).Code,
			"error", res.Err,
		)
	}
	writeJSON(w, r, status, newUploadResponse(res))
}

// respondRejected writes a request that never reached the pipeline.
func respondRejected(w http.ResponseWriter, r *http.Request, fileName string, err error) {
	respondResult(w, r, &core.Result{Status: core.StatusRejected, FileName: fileName, Err: err})
}

// writeJSON encodes v as the response body. Encoding errors are logged
// since the header is already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
