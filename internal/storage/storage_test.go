package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"brandkit/internal/domain"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func TestNewObjectKey(t *testing.T) {
	key := NewObjectKey("ai-inputs", "../My Logo (final).PNG")
	pattern := regexp.MustCompile(`^ai-inputs/[0-9a-z]{26}-My-Logo-final-.PNG$`)
	if !pattern.MatchString(key) {
		t.Fatalf("unexpected key %q", key)
	}
	if other := NewObjectKey("ai-inputs", "../My Logo (final).PNG"); other == key {
		t.Fatalf("keys must be unique")
	}
	if key := NewObjectKey("", "  "); !strings.HasSuffix(key, "-upload") || strings.Contains(key, "/") {
		t.Fatalf("unexpected fallback key %q", key)
	}
}

func TestDetectImageType(t *testing.T) {
	if got, err := DetectImageType(pngHeader, ""); err != nil || got != "image/png" {
		t.Fatalf("sniffed type = %q, %v", got, err)
	}
	if got, err := DetectImageType([]byte("anything"), "image/webp; charset=binary"); err != nil || got != "image/webp" {
		t.Fatalf("declared type = %q, %v", got, err)
	}
	if _, err := DetectImageType([]byte("plain text"), "text/plain"); !errors.Is(err, domain.ErrUnsupportedMedia) {
		t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
	}
}

func TestFileStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	url, err := store.Put(context.Background(), "/ai-inputs/abc-logo.png", pngHeader, "")
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if url != "http://localhost:8080/static/ai-inputs/abc-logo.png" {
		t.Fatalf("url = %q", url)
	}
	if !strings.HasPrefix(url, store.PublicBaseURL()) {
		t.Fatalf("url %q is outside %q", url, store.PublicBaseURL())
	}
	data, err := os.ReadFile(filepath.Join(dir, "ai-inputs", "abc-logo.png"))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != string(pngHeader) {
		t.Fatalf("stored bytes differ")
	}
}

func TestFileStoreRejectsTraversalAndNonImages(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost/static")
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	if _, err := store.Put(context.Background(), "../../etc/passwd", pngHeader, "image/png"); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
	if _, err := store.Put(context.Background(), "a.txt", []byte("hello"), "text/plain"); !errors.Is(err, domain.ErrUnsupportedMedia) {
		t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
	}
}

func TestNewFileStoreValidation(t *testing.T) {
	if _, err := NewFileStore("", "http://x"); err == nil {
		t.Fatal("expected error for blank path")
	}
	if _, err := NewFileStore(t.TempDir(), ""); err == nil {
		t.Fatal("expected error for blank base url")
	}
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3StorePut(t *testing.T) {
	putter := &fakePutter{}
	store := newS3Store("ai-assets", "https://ai-assets.s3.us-east-1.amazonaws.com", putter, zerolog.Nop())

	url, err := store.Put(context.Background(), "ai-inputs/abc-logo.png", pngHeader, "")
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if url != "https://ai-assets.s3.us-east-1.amazonaws.com/ai-inputs/abc-logo.png" {
		t.Fatalf("url = %q", url)
	}
	if *putter.input.Bucket != "ai-assets" || *putter.input.Key != "ai-inputs/abc-logo.png" {
		t.Fatalf("unexpected target %s/%s", *putter.input.Bucket, *putter.input.Key)
	}
	if *putter.input.ContentType != "image/png" {
		t.Fatalf("content type = %q", *putter.input.ContentType)
	}
	if string(putter.body) != string(pngHeader) {
		t.Fatalf("uploaded body differs")
	}
}

func TestS3StorePutError(t *testing.T) {
	putter := &fakePutter{err: errors.New("access denied")}
	store := newS3Store("ai-assets", "https://cdn", putter, zerolog.Nop())
	if _, err := store.Put(context.Background(), "k.png", pngHeader, "image/png"); err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestNewS3StoreBaseURL(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	store, err := NewS3Store(context.Background(), S3Options{
		Bucket:          "ai-assets",
		Endpoint:        "http://localhost:9000/",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		UsePathStyle:    true,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewS3Store error: %v", err)
	}
	if store.PublicBaseURL() != "http://localhost:9000/ai-assets" {
		t.Fatalf("PublicBaseURL = %q", store.PublicBaseURL())
	}
	if _, err := NewS3Store(context.Background(), S3Options{}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for blank bucket")
	}
}
