package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/tjfontaine/robin-backend/internal/domain"
)

func TestStore_FileLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.CreateFile(ctx, &domain.ProjectFile{ProjectID: "p1", Path: "src/a.ts", Content: "a"}); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	err := s.CreateFile(ctx, &domain.ProjectFile{ProjectID: "p1", Path: "src/a.ts", Content: "dup"})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("CreateFile() duplicate error = %v, want ErrAlreadyExists", err)
	}
	if err := s.UpdateFileContent(ctx, "p1", "src/a.ts", "b"); err != nil {
		t.Fatalf("UpdateFileContent() error = %v", err)
	}
	f, err := s.GetFile(ctx, "p1", "src/a.ts")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if f.Content != "b" {
		t.Errorf("Content = %q, want %q", f.Content, "b")
	}
	if err := s.UpdateFileContent(ctx, "p1", "missing", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdateFileContent() missing error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteFile(ctx, "p1", "src/a.ts"); err != nil {
		t.Fatalf("DeleteFile() error = %v", err)
	}
	if _, err := s.GetFile(ctx, "p1", "src/a.ts"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetFile() after delete error = %v, want ErrNotFound", err)
	}
}

func TestStore_ListFilesByPrefix(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, p := range []string{"src/b.ts", "src/a.ts", "README.md"} {
		if err := s.CreateFile(ctx, &domain.ProjectFile{ProjectID: "p1", Path: p}); err != nil {
			t.Fatalf("CreateFile() error = %v", err)
		}
	}
	files, err := s.ListFilesByPrefix(ctx, "p1", "src/")
	if err != nil {
		t.Fatalf("ListFilesByPrefix() error = %v", err)
	}
	if len(files) != 2 || files[0].Path != "src/a.ts" || files[1].Path != "src/b.ts" {
		t.Errorf("ListFilesByPrefix() = %+v", files)
	}
}

func TestStore_RecentMessagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	chat := &domain.Chat{UserID: "u1"}
	if err := s.CreateChat(ctx, chat); err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}
	for _, c := range []string{"one", "two", "three"} {
		if err := s.AddMessage(ctx, &domain.ChatMessage{ChatID: chat.ID, Sender: domain.SenderUser, Content: c}); err != nil {
			t.Fatalf("AddMessage() error = %v", err)
		}
	}
	msgs, err := s.RecentMessages(ctx, chat.ID, 2)
	if err != nil {
		t.Fatalf("RecentMessages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "three" || msgs[1].Content != "two" {
		t.Errorf("RecentMessages() = %+v", msgs)
	}
}

func TestStore_ArtifactsOrderAndLink(t *testing.T) {
	ctx := context.Background()
	s := New()
	a1 := &domain.Artifact{ChatID: "c1", Type: domain.ArtifactTodoList, Data: json.RawMessage(`{}`)}
	a2 := &domain.Artifact{ChatID: "c1", Type: domain.ArtifactProjectCard, Data: json.RawMessage(`{}`)}
	for _, a := range []*domain.Artifact{a1, a2} {
		if err := s.CreateArtifact(ctx, a); err != nil {
			t.Fatalf("CreateArtifact() error = %v", err)
		}
	}
	if err := s.UpdateArtifactData(ctx, a1.ID, json.RawMessage(`{"x":1}`)); err != nil {
		t.Fatalf("UpdateArtifactData() error = %v", err)
	}
	list, err := s.ListArtifacts(ctx, "c1", 20)
	if err != nil {
		t.Fatalf("ListArtifacts() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != a1.ID {
		t.Fatalf("ListArtifacts() first = %v, want most recently modified %s", list[0].ID, a1.ID)
	}
	if err := s.LinkArtifacts(ctx, "m1", []string{a1.ID, "unknown"}); err != nil {
		t.Fatalf("LinkArtifacts() error = %v", err)
	}
	got, _ := s.GetArtifact(ctx, a1.ID)
	if got.MessageID != "m1" {
		t.Errorf("MessageID = %q, want m1", got.MessageID)
	}
}

func TestStore_CanvasUniquePerChat(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.CreateCanvasFile(ctx, &domain.CanvasFile{ChatID: "c1", Path: "index.html"}); err != nil {
		t.Fatalf("CreateCanvasFile() error = %v", err)
	}
	if err := s.CreateCanvasFile(ctx, &domain.CanvasFile{ChatID: "c1", Path: "index.html"}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("CreateCanvasFile() duplicate error = %v", err)
	}
	if err := s.CreateCanvasFile(ctx, &domain.CanvasFile{ChatID: "c2", Path: "index.html"}); err != nil {
		t.Errorf("CreateCanvasFile() other chat error = %v", err)
	}
}
