package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/dataloader/internal/core"
	"github.com/JonMunkholm/dataloader/internal/ingest"
)

// Multipart field names accepted by handleUpload.
const (
	fieldFile      = "file"
	fieldDelimiter = "delimiter"
	fieldMapping   = "columnMapping"
)

// handleUpload loads one multipart upload and blocks until every chunk has
// finished.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if limit := s.opts.MaxFileSize; limit > 0 {
		if r.ContentLength > limit {
			respondRejected(w, r, "", &http.MaxBytesError{Limit: limit})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if !errors.As(err, &maxErr) {
			err = core.Validationf(core.CodeInvalidRequest, "invalid multipart form: %v", err)
		}
		respondRejected(w, r, "", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(fieldFile)
	if err != nil {
		respondRejected(w, r, "", core.Validationf(core.CodeInvalidRequest, "no file provided"))
		return
	}
	defer file.Close()

	raw := r.FormValue(fieldMapping)
	if raw == "" {
		respondRejected(w, r, header.Filename, core.Validationf(core.CodeInvalidMapping, "column mapping is required"))
		return
	}
	mapping, err := core.ParseMappingJSON([]byte(raw))
	if err != nil {
		respondRejected(w, r, header.Filename, err)
		return
	}

	res, _ := s.ingester.Ingest(r.Context(), ingest.Request{
		FileName:  header.Filename,
		Body:      file,
		Size:      header.Size,
		Delimiter: r.FormValue(fieldDelimiter),
		Mapping:   mapping,
	})
	respondResult(w, r, res)
}
