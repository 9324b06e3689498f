package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ajay-css/chatify/models"
	"github.com/Ajay-css/chatify/pkg"
)

// UploadURLPrefix is where saved files are served from.
const UploadURLPrefix = "/api/uploads/"

type UploadService interface {
	// Save stores an attachment on disk and returns its public URL and kind.
	Save(file multipart.File, header *multipart.FileHeader) (string, models.AttachmentKind, error)
	// Remove deletes a file previously returned by Save. URLs outside the
	// upload prefix are rejected.
	Remove(url string) error
	Dir() string
}

type uploadService struct {
	uploadDir string
	maxSize   int64
}

func NewUploadService(uploadDir string, maxSize int64) UploadService {
	return &uploadService{uploadDir: uploadDir, maxSize: maxSize}
}

var allowedMimeTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"image/webp":         true,
	"video/mp4":          true,
	"video/webm":         true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain":      true,
	"application/zip": true,
}

func (s *uploadService) Dir() string { return s.uploadDir }

func (s *uploadService) Save(file multipart.File, header *multipart.FileHeader) (string, models.AttachmentKind, error) {
	if header.Size > s.maxSize {
		return "", "", fmt.Errorf("%w: file too large (max %dMB)", pkg.ErrBadRequest, s.maxSize/(1024*1024))
	}

	contentType := strings.TrimSpace(strings.Split(header.Header.Get("Content-Type"), ";")[0])
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = sniffContentType(file)
	}
	if !allowedMimeTypes[contentType] {
		return "", "", fmt.Errorf("%w: file type not allowed: %s", pkg.ErrBadRequest, contentType)
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random filename: %w", err)
	}
	diskFilename := hex.EncodeToString(randomBytes) + "_" + sanitizeFilename(header.Filename)

	destPath := filepath.Join(s.uploadDir, diskFilename)
	dest, err := os.Create(destPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dest.Close()

	written, err := io.Copy(dest, io.LimitReader(file, s.maxSize+1))
	if err != nil {
		os.Remove(destPath)
		return "", "", fmt.Errorf("failed to save file: %w", err)
	}
	if written > s.maxSize {
		os.Remove(destPath)
		return "", "", fmt.Errorf("%w: file too large (max %dMB)", pkg.ErrBadRequest, s.maxSize/(1024*1024))
	}

	return UploadURLPrefix + diskFilename, models.KindFromMIME(contentType), nil
}

func (s *uploadService) Remove(url string) error {
	name, ok := strings.CutPrefix(url, UploadURLPrefix)
	if !ok || name == "" || name != filepath.Base(name) {
		return fmt.Errorf("%w: not an upload url: %s", pkg.ErrBadRequest, url)
	}
	if err := os.Remove(filepath.Join(s.uploadDir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	return nil
}

// sniffContentType reads the first 512 bytes and rewinds.
func sniffContentType(file multipart.File) string {
	buf := make([]byte, 512)
	n, _ := io.ReadFull(file, buf)
	_, _ = file.Seek(0, io.SeekStart)
	return strings.TrimSpace(strings.Split(http.DetectContentType(buf[:n]), ";")[0])
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '\x00' {
			return -1
		}
		return r
	}, name)

	if name == "" || name == "." || name == ".." {
		name = "unnamed"
	}
	return name
}
