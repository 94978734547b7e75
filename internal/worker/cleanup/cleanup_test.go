package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// ChatLogDeleter / SessionDeleter インターフェースに対するモック実装
type mockChatLogDeleter struct {
	called    bool
	retention time.Duration
	deleted   int64
	err       error
}

func (m *mockChatLogDeleter) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	m.called = true
	m.retention = retention
	return m.deleted, m.err
}

type mockSessionDeleter struct {
	called  bool
	deleted int64
	err     error
}

func (m *mockSessionDeleter) DeleteExpired(ctx context.Context) (int64, error) {
	m.called = true
	return m.deleted, m.err
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewCleanupJob_SetsRetentionDays(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	job := NewCleanupJob(&mockChatLogDeleter{}, &mockSessionDeleter{}, logger)

	if job.RetentionDays != 90 {
		t.Errorf("RetentionDays = %d, want 90", job.RetentionDays)
	}
}

func TestCleanupJob_Run_DeletesOldChatLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	chatLogs := &mockChatLogDeleter{deleted: 5}
	sessions := &mockSessionDeleter{}
	job := NewCleanupJob(chatLogs, sessions, logger)

	err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if !chatLogs.called {
		t.Fatal("expected DeleteOlderThan to be called")
	}
	want := 90 * 24 * time.Hour
	if chatLogs.retention != want {
		t.Errorf("retention = %v, want %v", chatLogs.retention, want)
	}
}

func TestCleanupJob_Run_DeletesExpiredSessions(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	chatLogs := &mockChatLogDeleter{}
	sessions := &mockSessionDeleter{deleted: 3}
	job := NewCleanupJob(chatLogs, sessions, logger)

	err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned error: %v", err)
	}

	if !sessions.called {
		t.Fatal("expected DeleteExpired to be called")
	}
}

func TestCleanupJob_Run_LogsDeletedCounts(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	chatLogs := &mockChatLogDeleter{deleted: 42}
	sessions := &mockSessionDeleter{deleted: 7}
	job := NewCleanupJob(chatLogs, sessions, logger)

	_ = job.Run(context.Background())

	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	found := false
	for _, line := range lines {
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry["deleted_chat_logs"] == float64(42) && entry["deleted_sessions"] == float64(7) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected log entry with deleted_chat_logs=42 and deleted_sessions=7, got: %s", buf.String())
	}
}

func TestCleanupJob_Run_ReturnsErrorOnChatLogFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	chatLogs := &mockChatLogDeleter{err: errors.New("db error")}
	sessions := &mockSessionDeleter{}
	job := NewCleanupJob(chatLogs, sessions, logger)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if sessions.called {
		t.Error("DeleteExpired should not be called after chat log failure")
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("expected ERROR level log, got: %s", buf.String())
	}
}

func TestCleanupJob_Run_ReturnsErrorOnSessionFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	chatLogs := &mockChatLogDeleter{}
	sessions := &mockSessionDeleter{err: errors.New("db error")}
	job := NewCleanupJob(chatLogs, sessions, logger)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestCleanupJob_Run_Idempotent_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	job := NewCleanupJob(&mockChatLogDeleter{}, &mockSessionDeleter{}, logger)

	// 削除対象がなくてもエラーにならない
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("first Run() returned error: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second Run() returned error: %v", err)
	}
}

// TestCleanupJob_CustomRetentionDays はRetentionDaysをカスタマイズした場合のテスト。
func TestCleanupJob_CustomRetentionDays(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	chatLogs := &mockChatLogDeleter{}
	job := NewCleanupJob(chatLogs, &mockSessionDeleter{}, logger)
	job.RetentionDays = 30

	_ = job.Run(context.Background())

	want := 30 * 24 * time.Hour
	if chatLogs.retention != want {
		t.Errorf("retention = %v, want %v", chatLogs.retention, want)
	}
}

func TestCleanupJob_Run_LogsExecutionTime(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	job := NewCleanupJob(&mockChatLogDeleter{deleted: 3}, &mockSessionDeleter{}, logger)

	_ = job.Run(context.Background())

	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	found := false
	for _, line := range lines {
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if _, ok := entry["duration_ms"]; ok {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected duration_ms in log output, got: %s", buf.String())
	}
}
