package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"

	"level-publish-system/utils"
)

// ErrVersionConflict means the stored document changed between Load and Save.
var ErrVersionConflict = errors.New("document version conflict")

// Backend loads and stores the whole document. Version is an opaque token;
// the empty string means "no document yet". Save must fail with
// ErrVersionConflict when the stored version is not expectedVersion.
type Backend interface {
	Load(ctx context.Context) (Document, string, error)
	Save(ctx context.Context, doc Document, expectedVersion string) (string, error)
}

// FileBackend keeps the document in one JSON file on local disk. The version
// token is the sha256 of the file contents.
type FileBackend struct {
	Path string
	mu   sync.Mutex
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

func (b *FileBackend) Load(ctx context.Context) (Document, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	raw, version, err := b.read()
	if err != nil {
		return nil, "", err
	}
	doc, err := Decode(raw)
	if err != nil {
		return nil, "", err
	}
	return doc, version, nil
}

func (b *FileBackend) Save(ctx context.Context, doc Document, expectedVersion string) (string, error) {
	data, err := Encode(doc)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	_, current, err := b.read()
	if err != nil {
		return "", err
	}
	if current != expectedVersion {
		return "", ErrVersionConflict
	}

	if err := utils.WriteFileAtomic(b.Path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", b.Path, err)
	}
	return contentVersion(data), nil
}

// read returns the raw file and its version; a missing file is empty.
func (b *FileBackend) read() ([]byte, string, error) {
	raw, err := os.ReadFile(b.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", b.Path, err)
	}
	return raw, contentVersion(raw), nil
}

func contentVersion(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
