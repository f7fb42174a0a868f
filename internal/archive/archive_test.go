package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mohammed-shakir/airmap/internal/core/config"
)

func TestFileSink_Put(t *testing.T) {
	dir := t.TempDir()
	s := FileSink{Dir: filepath.Join(dir, "air_condition")}

	path, err := s.Put(context.Background(), "2024-09-01 01:00:00.json", []byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(b) != `{"ok":true}` {
		t.Fatalf("content = %s", b)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestFileSink_RejectsTraversal(t *testing.T) {
	s := FileSink{Dir: t.TempDir()}
	for _, name := range []string{"", "../x.json", "a/b.json", ".."} {
		if _, err := s.Put(context.Background(), name, nil); err == nil {
			t.Fatalf("expected error for %q", name)
		}
	}
}

type fakeS3 struct {
	in  *s3.PutObjectInput
	out []byte
	err error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	b, _ := io.ReadAll(in.Body)
	f.out = b
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink_Put(t *testing.T) {
	fake := &fakeS3{}
	s := NewS3Sink(fake, "snapshots", "/air_condition/")

	loc, err := s.Put(context.Background(), "2024-09-01 01:00:00.json", []byte("{}"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if loc != "s3://snapshots/air_condition/2024-09-01 01:00:00.json" {
		t.Fatalf("location = %s", loc)
	}
	if aws.ToString(fake.in.Bucket) != "snapshots" || aws.ToString(fake.in.Key) != "air_condition/2024-09-01 01:00:00.json" {
		t.Fatalf("input = %+v", fake.in)
	}
	if string(fake.out) != "{}" {
		t.Fatalf("body = %s", fake.out)
	}
}

func TestS3Sink_Errors(t *testing.T) {
	if _, err := NewS3Sink(&fakeS3{}, "", "").Put(context.Background(), "x.json", nil); err == nil {
		t.Fatalf("expected error for empty bucket")
	}
	boom := errors.New("access denied")
	if _, err := NewS3Sink(&fakeS3{err: boom}, "b", "").Put(context.Background(), "x.json", nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestNew_Drivers(t *testing.T) {
	s, err := New(context.Background(), config.ArchiveCfg{Driver: "file", Dir: "/tmp/x"})
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if fs, ok := s.(FileSink); !ok || fs.Dir != "/tmp/x" {
		t.Fatalf("file sink = %#v", s)
	}
	if _, err := New(context.Background(), config.ArchiveCfg{Driver: "ftp"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
