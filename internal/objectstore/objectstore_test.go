package objectstore

import (
	"errors"
	"testing"
)

func TestURLJoinsPublicURLBucketAndKey(t *testing.T) {
	s := &Store{publicURL: "http://minio.local:9000/"}
	got := s.URL("acme-youtube", "/videos/abc123/video.mp4")
	want := "http://minio.local:9000/acme-youtube/videos/abc123/video.mp4"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestErrorFormatsAndUnwraps(t *testing.T) {
	inner := errors.New("not found")
	err := &Error{Op: "get", Bucket: "acme-youtube", Key: "videos/abc123/video.mp4", Err: inner}

	if err.Error() == "" {
		t.Fatal("expected non-empty error string")
	}
	if !errors.Is(err, inner) {
		t.Fatal("expected errors.Is to unwrap to the inner error")
	}
}
