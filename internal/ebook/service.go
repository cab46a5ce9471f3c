// Package ebook manages optional e-book attachments on catalog books.
// Files live in the object store; the book record keeps only the key.
package ebook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"libcirc/pkg/domain"
	"libcirc/pkg/storage"
	"libcirc/pkg/store"
)

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".epub": "application/epub+zip",
	".txt":  "text/plain",
}

// Config holds attachment service settings.
type Config struct {
	Store   store.Store
	Objects storage.ObjectStore
}

// Service manages e-book attachments.
type Service struct {
	store   store.Store
	objects storage.ObjectStore
}

// New constructs the attachment service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Objects == nil {
		return nil, errors.New("object store required")
	}
	return &Service{store: cfg.Store, objects: cfg.Objects}, nil
}

// AttachmentInfo describes a stored attachment. Pages is only set for PDFs.
type AttachmentInfo struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"sizeBytes"`
	Pages     int    `json:"pages,omitempty"`
}

// Attach stores an e-book file for a book and records the object key on the
// book record. PDFs are parsed up front so corrupt uploads are rejected
// before anything is written.
func (s *Service) Attach(bookID, filename string, r io.Reader) (AttachmentInfo, error) {
	book, ok, err := s.store.GetBook(bookID)
	if err != nil {
		return AttachmentInfo{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return AttachmentInfo{}, fmt.Errorf("%w: book %s", domain.ErrNotFound, bookID)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	contentType, allowed := contentTypes[ext]
	if !allowed {
		return AttachmentInfo{}, fmt.Errorf("%w: unsupported attachment type %q", domain.ErrValidation, ext)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return AttachmentInfo{}, fmt.Errorf("read attachment: %w", err)
	}
	if len(data) == 0 {
		return AttachmentInfo{}, fmt.Errorf("%w: empty attachment", domain.ErrValidation)
	}
	pages := 0
	if ext == ".pdf" {
		reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return AttachmentInfo{}, fmt.Errorf("%w: not a readable pdf", domain.ErrValidation)
		}
		pages = reader.NumPage()
	}
	key := "ebooks/" + bookID + ext
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return AttachmentInfo{}, fmt.Errorf("store attachment: %w", err)
	}
	book.AttachmentKey = key
	if err := s.store.UpdateBook(book); err != nil {
		return AttachmentInfo{}, fmt.Errorf("record attachment: %w", err)
	}
	slog.Info("attachment stored", "bookId", bookID, "key", key, "pages", pages)
	return AttachmentInfo{Key: key, SizeBytes: int64(len(data)), Pages: pages}, nil
}

// Detach removes a book's attachment, if any.
func (s *Service) Detach(bookID string) error {
	book, ok, err := s.store.GetBook(bookID)
	if err != nil {
		return fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: book %s", domain.ErrNotFound, bookID)
	}
	if book.AttachmentKey == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.objects.Delete(ctx, book.AttachmentKey); err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	book.AttachmentKey = ""
	if err := s.store.UpdateBook(book); err != nil {
		return fmt.Errorf("clear attachment: %w", err)
	}
	return nil
}

// DownloadURL returns a pre-signed URL for a book's attachment.
func (s *Service) DownloadURL(bookID string, expiry time.Duration) (string, error) {
	book, ok, err := s.store.GetBook(bookID)
	if err != nil {
		return "", fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: book %s", domain.ErrNotFound, bookID)
	}
	if book.AttachmentKey == "" {
		return "", fmt.Errorf("%w: book %s has no attachment", domain.ErrNotFound, bookID)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	url, err := s.objects.PresignGet(ctx, book.AttachmentKey, expiry)
	if err != nil {
		return "", fmt.Errorf("presign attachment: %w", err)
	}
	return url, nil
}
