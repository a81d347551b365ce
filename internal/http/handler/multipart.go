package handler

import (
	"errors"
	"mime/multipart"
	"net/http"

	"captionrate/internal/upload"
)

const formOverhead = 1 << 20

var errNoFile = errors.New("missing file field")

// formFile returns the "file" part of a multipart upload. The body is capped a little
// above maxBytes so the service, not the parser, decides what is too large.
func formFile(w http.ResponseWriter, r *http.Request, maxBytes int64) (multipart.File, string, error) {
	if maxBytes <= 0 {
		maxBytes = upload.DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverhead)
	if err := r.ParseMultipartForm(maxBytes + formOverhead); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, "", upload.ErrTooLarge
		}
		return nil, "", errNoFile
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, "", errNoFile
	}
	return f, hdr.Filename, nil
}
