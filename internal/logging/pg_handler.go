package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/tutor-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	batchSize     = 50
	flushInterval = 5 * time.Second
)

// BatchWriter persists a batch of system log rows.
type BatchWriter interface {
	WriteLogs(ctx context.Context, batch []models.SystemLog) error
}

type gormWriter struct {
	db *gorm.DB
}

func (w gormWriter) WriteLogs(ctx context.Context, batch []models.SystemLog) error {
	return w.db.WithContext(ctx).CreateInBatches(batch, batchSize).Error
}

// PGHandler is an slog.Handler that batches ERROR+ records into system_logs.
// Payment attributes are promoted to columns; everything else lands in Extra.
type PGHandler struct {
	core  *pgCore
	attrs []slog.Attr
}

type pgCore struct {
	writer BatchWriter
	mu     sync.Mutex
	buffer []models.SystemLog
	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func NewPGHandler(db *gorm.DB) *PGHandler {
	return NewBatchHandler(gormWriter{db: db}, flushInterval)
}

func NewBatchHandler(w BatchWriter, interval time.Duration) *PGHandler {
	core := &pgCore{
		writer: w,
		buffer: make([]models.SystemLog, 0, batchSize),
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	core.wg.Add(1)
	go core.flushLoop()
	return &PGHandler{core: core}
}

func (c *pgCore) flushLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ticker.C:
			c.flush()
		case <-c.done:
			c.flush()
			return
		}
	}
}

func (c *pgCore) flush() {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]models.SystemLog, 0, batchSize)
	c.mu.Unlock()

	if err := c.writer.WriteLogs(context.Background(), batch); err != nil {
		// Warn so the record is not routed back into this handler.
		slog.Warn("failed to flush system logs", "error", err, "count", len(batch))
	}
}

// Stop flushes what is buffered and waits for the flush loop to exit.
func (h *PGHandler) Stop() {
	h.core.once.Do(func() {
		h.core.ticker.Stop()
		close(h.core.done)
	})
	h.core.wg.Wait()
}

// Enabled only handles ERROR and above.
func (h *PGHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *PGHandler) Handle(_ context.Context, record slog.Record) error {
	entry := models.SystemLog{
		ID:        uuid.New(),
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]interface{})
	apply := func(a slog.Attr) bool {
		promote(&entry, extra, a)
		return true
	}
	for _, a := range h.attrs {
		apply(a)
	}
	record.Attrs(apply)

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	c := h.core
	c.mu.Lock()
	c.buffer = append(c.buffer, entry)
	needFlush := len(c.buffer) >= batchSize
	c.mu.Unlock()

	if needFlush {
		go c.flush()
	}
	return nil
}

func promote(entry *models.SystemLog, extra map[string]interface{}, a slog.Attr) {
	switch a.Key {
	case "request_id":
		entry.RequestID = a.Value.String()
	case "user_id":
		s := a.Value.String()
		entry.UserID = &s
	case "payment_id":
		s := a.Value.String()
		entry.PaymentID = &s
	case "provider":
		entry.Provider = a.Value.String()
	case "action":
		entry.Action = a.Value.String()
	case "error":
		entry.Error = a.Value.String()
	default:
		extra[a.Key] = a.Value.Any()
	}
}

func (h *PGHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &PGHandler{core: h.core, attrs: merged}
}

// WithGroup is a no-op: system_logs has a flat layout.
func (h *PGHandler) WithGroup(_ string) slog.Handler {
	return h
}
