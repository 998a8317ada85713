package transport

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"streetbasket/internal/middleware"
	"streetbasket/internal/service"
)

const (
	// multipartOverhead leaves room for the text fields sent next to a file
	multipartOverhead = 1 << 20
	multipartMemory   = 8 << 20
)

var errNotMultipart = errors.New("expected multipart/form-data")

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseMultipart parses a multipart body no larger than one upload plus its form fields
func parseMultipart(w http.ResponseWriter, r *http.Request, maxUploadBytes int64) error {
	if !isMultipart(r) {
		return errNotMultipart
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+multipartOverhead)
	return r.ParseMultipartForm(multipartMemory)
}

type formFile struct {
	service.Upload
	file multipart.File
}

func (f *formFile) close() {
	_ = f.file.Close()
}

// formUpload returns the named file part, or nil when the form has none
func formUpload(r *http.Request, field string) (*formFile, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	return &formFile{
		Upload: service.Upload{Filename: header.Filename, Content: file},
		file:   file,
	}, nil
}

func respondMultipartError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, errNotMultipart):
		middleware.RespondWithError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.As(err, &maxBytesErr):
		middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
	default:
		logger.Debug("Malformed multipart form", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
	}
}

// upload returns the service view of the file, nil-safe
func (f *formFile) upload() *service.Upload {
	if f == nil {
		return nil
	}
	return &f.Upload
}
