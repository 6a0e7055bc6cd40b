package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"video-chat-go/internal/model"
)

func TestIngestCreatesThenUpdates(t *testing.T) {
	videos := newFakeVideoRepo()
	svc := NewIngestService(videos, nil, nil)
	ctx := context.Background()

	first, err := svc.IngestVideo(ctx, testTenant, IngestRequest{VideoID: "42", Title: "first", Transcript: "a"})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if first.Status != StatusCreated || first.VideoID != "42" {
		t.Fatalf("first result = %+v", first)
	}

	second, err := svc.IngestVideo(ctx, testTenant, IngestRequest{VideoID: "42", Title: "second", Transcript: "b"})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if second.Status != StatusUpdated {
		t.Fatalf("second status = %q, want %q", second.Status, StatusUpdated)
	}
	if second.Message != "Video 'second' updated successfully." {
		t.Fatalf("second message = %q", second.Message)
	}

	got, err := svc.GetVideo(ctx, testTenant, "42")
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if got.Title != "second" || got.Transcript != "b" {
		t.Fatalf("stored video = %+v", got)
	}
}

func TestIngestMetadata(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "missing", raw: "", want: "{}"},
		{name: "null", raw: "null", want: "{}"},
		{name: "object", raw: `{"lang":"en"}`, want: `{"lang":"en"}`},
		{name: "array", raw: `[1,2]`, wantErr: true},
		{name: "string", raw: `"x"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			videos := newFakeVideoRepo()
			svc := NewIngestService(videos, nil, nil)
			_, err := svc.IngestVideo(context.Background(), testTenant, IngestRequest{
				VideoID:  "v",
				Title:    "t",
				Metadata: json.RawMessage(tt.raw),
			})
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("IngestVideo: %v", err)
			}
			if got := string(videos.videos[videoKey(1, "v")].Metadata); got != tt.want {
				t.Fatalf("metadata = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIngestRequiresVideoID(t *testing.T) {
	svc := NewIngestService(newFakeVideoRepo(), nil, nil)
	_, err := svc.IngestVideo(context.Background(), testTenant, IngestRequest{VideoID: " ", Title: "t"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestIngestConflictIsSurfaced(t *testing.T) {
	videos := newFakeVideoRepo()
	videos.err = ErrConflict
	svc := NewIngestService(videos, nil, nil)
	_, err := svc.IngestVideo(context.Background(), testTenant, IngestRequest{VideoID: "42", Title: "t"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestIngestArchivesAndPublishes(t *testing.T) {
	pub := &fakePublisher{}
	arch := &fakeArchive{}
	svc := NewIngestService(newFakeVideoRepo(), pub, arch)

	if _, err := svc.IngestVideo(context.Background(), testTenant, IngestRequest{VideoID: "42", Title: "t", Transcript: "text"}); err != nil {
		t.Fatalf("IngestVideo: %v", err)
	}
	if arch.puts[videoKey(1, "42")] != "text" {
		t.Fatalf("transcript was not archived: %v", arch.puts)
	}
	if len(pub.tasks) != 1 || pub.tasks[0].TenantID != 1 || pub.tasks[0].VideoID != "42" || pub.tasks[0].Status != StatusCreated {
		t.Fatalf("published tasks = %+v", pub.tasks)
	}

	got, err := svc.GetVideo(context.Background(), testTenant, "42")
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if got.TranscriptURL == "" || got.TranscriptLength != 4 {
		t.Fatalf("video detail = %+v", got)
	}
}

func TestIngestSideEffectFailuresDoNotFailRequest(t *testing.T) {
	pub := &fakePublisher{err: errors.New("kafka down")}
	arch := &fakeArchive{err: errors.New("minio down")}
	svc := NewIngestService(newFakeVideoRepo(), pub, arch)

	res, err := svc.IngestVideo(context.Background(), testTenant, IngestRequest{VideoID: "42", Title: "t"})
	if err != nil {
		t.Fatalf("IngestVideo: %v", err)
	}
	if res.Status != StatusCreated {
		t.Fatalf("status = %q", res.Status)
	}
}

func TestGetVideoNotFound(t *testing.T) {
	svc := NewIngestService(newFakeVideoRepo(model.Video{TenantID: 2, ID: "42"}), nil, nil)
	if _, err := svc.GetVideo(context.Background(), testTenant, "42"); !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", err)
	}
}
