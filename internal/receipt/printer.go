package receipt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

type Printer interface {
	Print(ctx context.Context, r Receipt) error
}

// LogPrinter emits receipts as structured log records.
type LogPrinter struct {
	logger *slog.Logger
}

func NewLogPrinter(logger *slog.Logger) *LogPrinter {
	return &LogPrinter{logger: logger}
}

func (p *LogPrinter) Print(ctx context.Context, r Receipt) error {
	p.logger.InfoContext(ctx, "receipt printed", "order_id", r.OrderID, "receipt", r.Text)
	return nil
}

// WriterPrinter writes receipt text to w, one receipt at a time.
type WriterPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterPrinter(w io.Writer) *WriterPrinter {
	return &WriterPrinter{w: w}
}

func (p *WriterPrinter) Print(_ context.Context, r Receipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := io.WriteString(p.w, r.Text+"\n"); err != nil {
		return fmt.Errorf("write receipt for order %d: %w", r.OrderID, err)
	}
	return nil
}
