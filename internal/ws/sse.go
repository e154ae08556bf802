package ws

import (
	"bufio"
	"context"
	"fmt"
	"time"
)

// Stream subscribes to the hub and writes events to w in server-sent
// events framing until ctx is done, the hub closes the queue, or a write
// fails. While idle it writes a comment heartbeat every interval.
func (h *Hub) Stream(ctx context.Context, w *bufio.Writer, heartbeat time.Duration) error {
	id, events := h.Subscribe()
	defer h.Unsubscribe(id)
	return Pump(ctx, w, events, heartbeat)
}

// Pump drains an already registered queue into w.
func Pump(ctx context.Context, w *bufio.Writer, events <-chan []byte, heartbeat time.Duration) error {
	// Tell the client the stream is open before the first event.
	if err := writeFlush(w, ": connected\n\n"); err != nil {
		return err
	}

	timer := time.NewTimer(heartbeat)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeFlush(w, "data: "+string(payload)+"\n\n"); err != nil {
				return err
			}
		case <-timer.C:
			if err := writeFlush(w, ": ping\n\n"); err != nil {
				return err
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(heartbeat)
	}
}

func writeFlush(w *bufio.Writer, s string) error {
	if _, err := w.WriteString(s); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush event: %w", err)
	}
	return nil
}
