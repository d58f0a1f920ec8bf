package state

import (
	"context"
	"io"
	"log"

	"github.com/HexSleeves/toolloop/internal/bus"
)

// Recorder persists run events published on a bus. Write failures are
// logged and never interrupt the run.
type Recorder struct {
	db     *DB
	logger *log.Logger
}

func NewRecorder(db *DB, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Recorder{db: db, logger: logger}
}

// Attach subscribes the recorder to every message on b.
func (r *Recorder) Attach(b *bus.MessageBus) {
	b.SubscribeAll(r.Handle)
}

// Handle records one bus message.
func (r *Recorder) Handle(msg bus.Message) {
	ctx := context.Background()
	if err := r.handle(ctx, msg); err != nil {
		r.logger.Printf("⚠ DB: failed to record %s for run %s: %v", msg.Type, msg.RunID, err)
	}
}

func (r *Recorder) handle(ctx context.Context, msg bus.Message) error {
	if msg.RunID == "" {
		return nil
	}

	switch msg.Type {
	case bus.MsgRunStarted:
		p, _ := msg.Payload.(bus.RunStarted)
		if err := r.db.CreateRun(ctx, RunRow{
			ID:            msg.RunID,
			Prompt:        p.Prompt,
			Provider:      p.Provider,
			Model:         p.Model,
			MaxIterations: p.MaxIterations,
		}); err != nil {
			return err
		}
		if p.SystemPrompt != "" {
			if _, err := r.db.AppendMessage(ctx, msg.RunID, "system", p.SystemPrompt); err != nil {
				return err
			}
		}
		if _, err := r.db.AppendMessage(ctx, msg.RunID, "user", p.Prompt); err != nil {
			return err
		}

	case bus.MsgTurnReply:
		if _, err := r.db.AppendMessage(ctx, msg.RunID, "assistant", text(msg)); err != nil {
			return err
		}
		if err := r.db.UpdateRunIteration(ctx, msg.RunID, msg.Iteration); err != nil {
			return err
		}

	case bus.MsgTurnObservation:
		if _, err := r.db.AppendMessage(ctx, msg.RunID, "user", text(msg)); err != nil {
			return err
		}

	case bus.MsgRunAnswer:
		if err := r.db.FinishRun(ctx, msg.RunID, StatusAnswered, text(msg), "", msg.Iteration); err != nil {
			return err
		}

	case bus.MsgRunTimeout:
		if err := r.db.FinishRun(ctx, msg.RunID, StatusTimeout, "", "iteration budget exhausted", msg.Iteration); err != nil {
			return err
		}

	case bus.MsgRunFailed:
		if err := r.db.FinishRun(ctx, msg.RunID, StatusFailed, "", text(msg), msg.Iteration); err != nil {
			return err
		}
	}

	_, err := r.db.AppendEvent(ctx, msg.RunID, string(msg.Type), msg.Iteration, msg.Payload)
	return err
}

func text(msg bus.Message) string {
	switch p := msg.Payload.(type) {
	case bus.Text:
		return p.Text
	case string:
		return p
	}
	return ""
}
