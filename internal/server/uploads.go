package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"sort"
	"strings"

	"oscar-gateway/internal/service"
	"oscar-gateway/internal/upstream"
	"oscar-gateway/internal/validate"
)

const (
	uploadFileField = "file"
	maxFieldBytes   = 64 << 10
)

// uploadedFile - файл из входящего multipart, сохраненный во временный файл.
type uploadedFile struct {
	name        string
	contentType string
	size        int64
}

// upload принимает multipart с полем file, сохраняет файл на диск и
// переотправляет его вместе с остальными полями формы в апстрим новым
// multipart-запросом. Временный файл удаляется при любом исходе.
func (s *Server) upload(client service.UpstreamClient, path string, required ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Uploads.MaxBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Uploads.MaxBytes)
		}
		mr, err := r.MultipartReader()
		if err != nil {
			writeError(w, http.StatusBadRequest, "Request must be multipart/form-data", nil)
			return
		}

		tmp, err := os.CreateTemp(s.cfg.Uploads.TempDir, "oscar-upload-*")
		if err != nil {
			log.Printf("Failed to create temp file for upload %s: %v", path, err)
			writeError(w, http.StatusInternalServerError, "Failed to store uploaded file", nil)
			return
		}
		defer func() {
			tmp.Close()
			if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Printf("Failed to remove temp file %s: %v", tmp.Name(), err)
			}
		}()

		file, fields, err := receiveUpload(mr, tmp)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		if file == nil {
			writeError(w, http.StatusBadRequest, "No file uploaded", nil)
			return
		}
		for _, name := range required {
			if strings.TrimSpace(fields.Get(name)) == "" {
				writeFailure(w, r, validate.Errorf(name, "Missing required field: %s", name))
				return
			}
		}
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			writeFailure(w, r, fmt.Errorf("rewind upload: %w", err))
			return
		}

		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		contentType := mw.FormDataContentType()
		done := make(chan error, 1)
		go func() {
			err := writeUpload(mw, tmp, file, fields)
			pw.CloseWithError(err)
			done <- err
		}()

		resp, err := s.call(r, client, upstream.Request{
			Method:      http.MethodPost,
			Path:        path,
			RawBody:     pr,
			ContentType: contentType,
			Timeout:     s.cfg.Upstream.LongTimeout,
		})
		// Писатель должен завершиться до того, как defer удалит файл.
		pr.Close()
		if werr := <-done; werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
			log.Printf("Upload %s: failed to stream file: %v", path, werr)
		}
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		log.Printf("Upload %s: forwarded %q (%d bytes)", path, file.name, file.size)
		writeUpstream(w, resp)
	}
}

// receiveUpload вычитывает части формы: файл пишется в dst, остальные поля
// собираются в formFields.
func receiveUpload(mr *multipart.Reader, dst io.Writer) (*uploadedFile, formFields, error) {
	var file *uploadedFile
	fields := formFields{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return file, fields, nil
		}
		if err != nil {
			return nil, nil, uploadError(err)
		}

		if part.FormName() == uploadFileField && part.FileName() != "" {
			if file != nil {
				part.Close()
				return nil, nil, validate.Errorf(uploadFileField, "Only one file can be uploaded at a time")
			}
			n, err := io.Copy(dst, part)
			part.Close()
			if err != nil {
				return nil, nil, uploadError(err)
			}
			file = &uploadedFile{name: part.FileName(), contentType: part.Header.Get("Content-Type"), size: n}
			continue
		}

		value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
		part.Close()
		if err != nil {
			return nil, nil, uploadError(err)
		}
		if len(value) > maxFieldBytes {
			return nil, nil, validate.Errorf(part.FormName(), "Form field %s is too large", part.FormName())
		}
		if name := part.FormName(); name != "" {
			fields[name] = append(fields[name], string(value))
		}
	}
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return validate.Errorf(uploadFileField, "Uploaded file is too large")
	}
	return validate.Errorf(uploadFileField, "Failed to parse multipart form: %v", err)
}

type formFields map[string][]string

func (f formFields) Get(name string) string {
	if v := f[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// writeUpload пишет поля в порядке имен, затем файл.
func writeUpload(mw *multipart.Writer, src io.Reader, file *uploadedFile, fields formFields) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range fields[name] {
			if err := mw.WriteField(name, v); err != nil {
				return err
			}
		}
	}

	part, err := mw.CreatePart(fileHeader(file))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func fileHeader(file *uploadedFile) textproto.MIMEHeader {
	contentType := file.contentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="%s"; filename="%s"`, uploadFileField, quoteEscaper.Replace(file.name))},
		"Content-Type":        {contentType},
	}
}
