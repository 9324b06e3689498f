package services

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ajay-css/chatify/models"
	"github.com/Ajay-css/chatify/pkg"
)

// multipartFile builds a real multipart.File/FileHeader pair.
func multipartFile(t *testing.T, name, contentType string, data []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	file, header, err := req.FormFile("file")
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })
	return file, header
}

func TestUploadSave(t *testing.T) {
	dir := t.TempDir()
	svc := NewUploadService(dir, 1024)

	file, header := multipartFile(t, "../../report.pdf", "application/pdf", []byte("%PDF-1.4 test"))
	url, kind, err := svc.Save(file, header)
	require.NoError(t, err)
	assert.Equal(t, models.KindDocument, kind)
	require.True(t, strings.HasPrefix(url, UploadURLPrefix))
	assert.True(t, strings.HasSuffix(url, "_report.pdf"))

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, UploadURLPrefix)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 test", string(data))
}

func TestUploadSniffsMissingContentType(t *testing.T) {
	svc := NewUploadService(t.TempDir(), 1024)
	png := []byte("\x89PNG\r\n\x1a\n0000")

	file, header := multipartFile(t, "pic", "application/octet-stream", png)
	_, kind, err := svc.Save(file, header)
	require.NoError(t, err)
	assert.Equal(t, models.KindImage, kind)
}

func TestUploadRejects(t *testing.T) {
	svc := NewUploadService(t.TempDir(), 8)

	file, header := multipartFile(t, "big.txt", "text/plain", []byte("more than eight bytes"))
	_, _, err := svc.Save(file, header)
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	file, header = multipartFile(t, "x.exe", "application/x-msdownload", []byte("MZ"))
	_, _, err = svc.Save(file, header)
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestUploadRemove(t *testing.T) {
	dir := t.TempDir()
	svc := NewUploadService(dir, 1024)

	file, header := multipartFile(t, "notes.txt", "text/plain", []byte("hello"))
	url, _, err := svc.Save(file, header)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(url))
	_, err = os.Stat(filepath.Join(dir, strings.TrimPrefix(url, UploadURLPrefix)))
	assert.True(t, os.IsNotExist(err))

	// already gone is fine
	require.NoError(t, svc.Remove(url))

	assert.ErrorIs(t, svc.Remove("/etc/passwd"), pkg.ErrBadRequest)
	assert.ErrorIs(t, svc.Remove(UploadURLPrefix+"../x"), pkg.ErrBadRequest)
}
