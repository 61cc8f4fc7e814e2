package logging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestSystemLogFromRecord(t *testing.T) {
	now := time.Now()
	record := slog.NewRecord(now, slog.LevelError, "request failed", 0)
	record.AddAttrs(
		slog.String("request_id", "req-1"),
		slog.String("user_id", "u-1"),
		slog.String("location_id", "l-1"),
		slog.String("error", "boom"),
		slog.Float64("latency_ms", 12.6),
		slog.String("path", "/api/order"),
	)

	entry := systemLogFromRecord(record)
	if entry.Level != "ERROR" || entry.Message != "request failed" || !entry.Timestamp.Equal(now) {
		t.Errorf("entry = %+v", entry)
	}
	if entry.RequestID != "req-1" || entry.Error != "boom" || entry.LatencyMs != 13 {
		t.Errorf("columns = %+v", entry)
	}
	if entry.UserID == nil || *entry.UserID != "u-1" || entry.LocationID == nil || *entry.LocationID != "l-1" {
		t.Errorf("ids = %v %v", entry.UserID, entry.LocationID)
	}
	if entry.OrderID != nil {
		t.Errorf("order id = %v, want nil", *entry.OrderID)
	}

	var extra map[string]interface{}
	if err := json.Unmarshal(entry.Extra, &extra); err != nil {
		t.Fatal(err)
	}
	if extra["path"] != "/api/order" || len(extra) != 1 {
		t.Errorf("extra = %v", extra)
	}
}

func TestSystemLogOrderColumns(t *testing.T) {
	record := slog.NewRecord(time.Now(), slog.LevelError, "order update failed", 0)
	record.AddAttrs(
		slog.String("order_id", "o-1"),
		slog.String("action", "update_order"),
	)

	entry := systemLogFromRecord(record)
	if entry.OrderID == nil || *entry.OrderID != "o-1" || entry.Action != "update_order" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.LocationID != nil {
		t.Errorf("location id = %v, want nil", *entry.LocationID)
	}
}

func TestPGHandlerOnlyBuffersErrors(t *testing.T) {
	h := &PGHandler{}
	ctx := context.Background()

	if h.Enabled(ctx, slog.LevelWarn) {
		t.Error("WARN should not be persisted")
	}
	if !h.Enabled(ctx, slog.LevelError) {
		t.Error("ERROR should be persisted")
	}

	if err := h.Handle(ctx, slog.NewRecord(time.Now(), slog.LevelError, "x", 0)); err != nil {
		t.Fatal(err)
	}
	if len(h.buffer) != 1 {
		t.Errorf("buffer = %d, want 1", len(h.buffer))
	}
}

type countingHandler struct {
	level slog.Level
	seen  int
}

func (c *countingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= c.level }
func (c *countingHandler) Handle(context.Context, slog.Record) error    { c.seen++; return nil }
func (c *countingHandler) WithAttrs([]slog.Attr) slog.Handler           { return c }
func (c *countingHandler) WithGroup(string) slog.Handler                { return c }

func TestMultiHandlerRoutesByLevel(t *testing.T) {
	info := &countingHandler{level: slog.LevelInfo}
	errs := &countingHandler{level: slog.LevelError}
	logger := slog.New(NewMultiHandler(info, errs))

	logger.Debug("dropped")
	logger.Info("kept by info")
	logger.Error("kept by both")

	if info.seen != 2 || errs.seen != 1 {
		t.Errorf("info=%d errors=%d, want 2 and 1", info.seen, errs.seen)
	}
}

type failingHandler struct{ countingHandler }

func (f *failingHandler) Handle(context.Context, slog.Record) error {
	f.seen++
	return errors.New("sink down")
}

func TestMultiHandlerContinuesPastFailure(t *testing.T) {
	bad := &failingHandler{}
	good := &countingHandler{}
	h := NewMultiHandler(bad, good)

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "boom", 0))
	if err == nil {
		t.Fatal("expected the sink error to be reported")
	}
	if bad.seen != 1 || good.seen != 1 {
		t.Errorf("bad=%d good=%d, want both 1", bad.seen, good.seen)
	}
}

func TestRunPurgersContinuesAfterError(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var calls []string
	var seen time.Time
	runPurgers([]Purger{
		{Name: "broken", Purge: func(time.Time) (int64, error) {
			calls = append(calls, "broken")
			return 0, errors.New("db down")
		}},
		{Name: "tokens", Purge: func(at time.Time) (int64, error) {
			calls = append(calls, "tokens")
			seen = at
			return 3, nil
		}},
	}, now)

	if len(calls) != 2 || calls[1] != "tokens" {
		t.Fatalf("calls = %v", calls)
	}
	if !seen.Equal(now) {
		t.Errorf("purge time = %v, want %v", seen, now)
	}
}
