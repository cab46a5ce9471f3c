package ebook

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"libcirc/pkg/domain"
	"libcirc/pkg/store"
)

type fakeObjectStore struct {
	objects map[string][]byte
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	if _, ok := f.objects[key]; !ok {
		return "", errors.New("no such object")
	}
	return "https://objects.test/" + key, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func newService(t *testing.T) (*Service, *store.MemoryStore, *fakeObjectStore) {
	t.Helper()
	st := store.NewMemoryStore()
	objects := newFakeObjectStore()
	svc, err := New(Config{Store: st, Objects: objects})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return svc, st, objects
}

func seedBook(t *testing.T, st store.Store, id string) {
	t.Helper()
	err := st.CreateBook(domain.Book{
		ID: id, Title: "Dune", Author: "Frank Herbert",
		Available: true, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateBook() error: %v", err)
	}
}

func TestAttachText(t *testing.T) {
	svc, st, objects := newService(t)
	seedBook(t, st, "b1")

	info, err := svc.Attach("b1", "dune.txt", strings.NewReader("full text here"))
	if err != nil {
		t.Fatalf("Attach() error: %v", err)
	}
	if info.Key != "ebooks/b1.txt" {
		t.Errorf("Key = %q, want %q", info.Key, "ebooks/b1.txt")
	}
	if info.SizeBytes != int64(len("full text here")) {
		t.Errorf("SizeBytes = %d", info.SizeBytes)
	}
	if _, ok := objects.objects[info.Key]; !ok {
		t.Error("object should have been stored")
	}
	book, _, _ := st.GetBook("b1")
	if book.AttachmentKey != info.Key {
		t.Errorf("AttachmentKey = %q, want %q", book.AttachmentKey, info.Key)
	}
}

func TestAttachRejectsBadInput(t *testing.T) {
	svc, st, _ := newService(t)
	seedBook(t, st, "b1")

	if _, err := svc.Attach("nope", "dune.txt", strings.NewReader("x")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown book: err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Attach("b1", "dune.exe", strings.NewReader("x")); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad extension: err = %v, want ErrValidation", err)
	}
	if _, err := svc.Attach("b1", "dune.txt", strings.NewReader("")); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty file: err = %v, want ErrValidation", err)
	}
	// Garbage that claims to be a PDF is rejected before storage.
	if _, err := svc.Attach("b1", "dune.pdf", strings.NewReader("not a pdf at all")); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("corrupt pdf: err = %v, want ErrValidation", err)
	}
	book, _, _ := st.GetBook("b1")
	if book.AttachmentKey != "" {
		t.Errorf("failed attaches must not record a key, got %q", book.AttachmentKey)
	}
}

func TestDetach(t *testing.T) {
	svc, st, objects := newService(t)
	seedBook(t, st, "b1")

	info, err := svc.Attach("b1", "dune.epub", strings.NewReader("epub bytes"))
	if err != nil {
		t.Fatalf("Attach() error: %v", err)
	}
	if err := svc.Detach("b1"); err != nil {
		t.Fatalf("Detach() error: %v", err)
	}
	if _, ok := objects.objects[info.Key]; ok {
		t.Error("object should have been deleted")
	}
	book, _, _ := st.GetBook("b1")
	if book.AttachmentKey != "" {
		t.Errorf("AttachmentKey = %q, want empty", book.AttachmentKey)
	}

	// Detaching a book without an attachment is a no-op.
	if err := svc.Detach("b1"); err != nil {
		t.Fatalf("second Detach() error: %v", err)
	}
	if err := svc.Detach("nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown book: err = %v, want ErrNotFound", err)
	}
}

func TestDownloadURL(t *testing.T) {
	svc, st, _ := newService(t)
	seedBook(t, st, "b1")

	if _, err := svc.DownloadURL("b1", time.Hour); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("no attachment: err = %v, want ErrNotFound", err)
	}

	if _, err := svc.Attach("b1", "dune.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("Attach() error: %v", err)
	}
	url, err := svc.DownloadURL("b1", time.Hour)
	if err != nil {
		t.Fatalf("DownloadURL() error: %v", err)
	}
	if url != "https://objects.test/ebooks/b1.txt" {
		t.Errorf("url = %q", url)
	}
}
