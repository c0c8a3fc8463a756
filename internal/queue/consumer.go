package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/faultdesk/internal/logging"
)

// ActivityLogName is the file the consumer appends to inside its log dir.
const ActivityLogName = "fault_activity.log"

// StartActivityConsumer consumes the fault events queue and appends one
// line per event to dir/fault_activity.log. It reconnects with backoff
// until ctx is cancelled.
func StartActivityConsumer(ctx context.Context, url, dir string) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			logging.Warn(ctx, "activity consumer: dial failed",
				slog.Duration("retry_in", backoff), logging.Err(err))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, dir)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Warn(ctx, "activity consumer: loop ended, reconnecting", logging.Err(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, dir string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logging.Warn(ctx, "activity consumer: set QoS failed", logging.Err(err))
	}
	if _, err := ch.QueueDeclare(FaultEventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(FaultEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := HandleMessage(dir, d.Body); err != nil {
				logging.Error(ctx, "activity consumer: handle message failed", logging.Err(err))
				_ = d.Nack(false, false) // do not requeue a poison message
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one event body and appends its log line.
func HandleMessage(dir string, body []byte) error {
	var ev FaultEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.FaultID == 0 {
		return errors.New("event without type or fault id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, ActivityLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatActivity(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatActivity renders ev as a single newline-terminated log line.
func FormatActivity(ev FaultEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | fault_id=%d | actor=%q (id=%d)", ev.OccurredAt, ev.Type, ev.FaultID, ev.Actor, ev.ActorID)
	if ev.SystemID != "" {
		fmt.Fprintf(&b, " | system=%s", ev.SystemID)
	}
	if ev.Status != "" {
		fmt.Fprintf(&b, " | status=%q", ev.Status)
	}
	if ev.AssignTo != "" {
		fmt.Fprintf(&b, " | assign_to=%q", ev.AssignTo)
	}
	if len(ev.Changed) > 0 {
		fmt.Fprintf(&b, " | changed=[%s]", strings.Join(ev.Changed, ","))
	}
	b.WriteByte('\n')
	return b.String()
}
