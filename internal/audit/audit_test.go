package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"vegaslounge.live/internal/obs"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger := obs.Logger()
	prev := logger.Out
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(prev) })
	return &buf
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for blank event name")
	}
}

func TestLogEventCarriesContext(t *testing.T) {
	buf := captureLog(t)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithActor(ctx, "user-1")
	err := LogEvent(ctx, "wallet.bet", map[string]any{"tx_id": "t1"})
	if err != nil {
		t.Fatal(err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v: %s", err, buf.String())
	}
	if entry["type"] != "audit" || entry["event"] != "wallet.bet" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["request_id"] != "req-1" || entry["user_id"] != "user-1" {
		t.Fatalf("context fields missing: %v", entry)
	}
	if entry["tx_id"] != "t1" {
		t.Fatalf("payload field missing: %v", entry)
	}
}

func TestBlankContextValuesAreDropped(t *testing.T) {
	buf := captureLog(t)

	ctx := WithRequestID(context.Background(), "   ")
	if err := LogEvent(ctx, "user.create", nil); err != nil {
		t.Fatal(err)
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if _, ok := entry["request_id"]; ok {
		t.Fatal("blank request id should not be attached")
	}
}
