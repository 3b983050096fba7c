// Package drive implements store.DocumentStore on the Google Drive
// application data folder, a per-app area hidden from the user's files.
package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/gauthierbraillon/feedtriage/internal/store"
)

// AppDataFolder is the Drive space and parent alias of the app-private area.
const AppDataFolder = "appDataFolder"

// Store is a store.DocumentStore backed by Drive's appDataFolder.
type Store struct {
	service *drive.Service
	name    string
}

var _ store.DocumentStore = (*Store)(nil)

// New creates a Drive store. Authentication comes from opts, typically
// option.WithHTTPClient with an OAuth2 client carrying the drive.appdata scope.
func New(ctx context.Context, opts ...option.ClientOption) (*Store, error) {
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Store{service: service, name: store.DocumentName}, nil
}

// List returns the state documents in the app data folder.
func (s *Store) List(ctx context.Context) ([]store.File, error) {
	var files []store.File
	query := fmt.Sprintf("name = '%s' and trashed = false", s.name)

	call := s.service.Files.List().
		Spaces(AppDataFolder).
		Q(query).
		Fields("nextPageToken, files(id, name, size)").
		PageSize(100)

	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			files = append(files, store.File{ID: f.Id, Name: f.Name, Size: f.Size})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list app data: %w", mapError(err))
	}
	return files, nil
}

// Create makes an empty document in the app data folder.
func (s *Store) Create(ctx context.Context, name, mimeType string) (store.File, error) {
	f, err := s.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{AppDataFolder},
	}).Fields("id, name").Context(ctx).Do()
	if err != nil {
		return store.File{}, fmt.Errorf("create %s: %w", name, mapError(err))
	}
	return store.File{ID: f.Id, Name: f.Name}, nil
}

// Read downloads the full content of a document.
func (s *Store) Read(ctx context.Context, id string) ([]byte, error) {
	resp, err := s.service.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", id, mapError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", id, err)
	}
	return data, nil
}

// Write replaces the content of a document.
func (s *Store) Write(ctx context.Context, id string, data []byte) error {
	_, err := s.service.Files.Update(id, &drive.File{}).
		Media(bytes.NewReader(data), googleapi.ContentType(store.MIMEType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("upload %s: %w", id, mapError(err))
	}
	return nil
}

func mapError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %w", store.ErrDocumentNotFound, err)
	}
	return err
}
