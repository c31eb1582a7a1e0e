package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cdiaz/chatwire/internal/types"
)

const (
	maxUploadSize        = 10 << 20 // per file
	maxUploadConcurrency = 5
	uploadsPath          = "/uploads/"
)

// ObjectStore persists uploaded media and returns a URL the client
// embeds verbatim in send/privateMessage payloads.
type ObjectStore interface {
	Put(name string, r io.Reader) (string, error)
}

// DiskObjectStore writes uploads to a local directory served at
// /uploads/. It stands in for the external storage provider the rest
// of the system treats as a black box.
type DiskObjectStore struct {
	dir string
}

func NewDiskObjectStore(dir string) (*DiskObjectStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskObjectStore{dir: dir}, nil
}

func (ds *DiskObjectStore) Put(name string, r io.Reader) (string, error) {
	f, err := os.Create(filepath.Join(ds.dir, name))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, io.LimitReader(r, maxUploadSize)); err != nil {
		return "", err
	}

	return uploadsPath + name, nil
}

// mediaType reduces a MIME type to the coarse tag stored on message
// attachments.
func mediaType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	case strings.HasPrefix(contentType, "audio/"):
		return "audio"
	default:
		return "raw"
	}
}

func (s *ChatwireApp) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	for _, header := range files {
		if header.Size > maxUploadSize {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	media := make([]types.Media, len(files))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(maxUploadConcurrency)

	for i, header := range files {
		g.Go(func() error {
			url, err := s.storeFile(header)
			if err != nil {
				return err
			}

			name := header.Filename
			if name == "" {
				name = "Unknown File"
			}

			mu.Lock()
			media[i] = types.Media{
				Url:  url,
				Name: name,
				Type: mediaType(header.Header.Get("Content-Type")),
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.log.Println("upload:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	urls := make([]string, len(media))
	for i, m := range media {
		urls[i] = m.Url
	}

	s.writeJson(w, http.StatusOK, map[string]any{
		"success": true,
		"urls":    urls,
		"files":   media,
	})
}

func (s *ChatwireApp) storeFile(header *multipart.FileHeader) (string, error) {
	f, err := header.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	name := uuid.NewString()
	if ext := filepath.Ext(header.Filename); ext != "" {
		name += ext
	}

	return s.uploads.Put(name, f)
}
