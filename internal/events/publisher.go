// Package events publishes import progress over NATS for operators that want
// to watch long conversions from elsewhere. Publishing is best-effort and
// entirely optional; the pipeline runs the same without a broker.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectFileDone is published after each input file finishes.
	SubjectFileDone = "chatport.import.file"
	// SubjectRunDone is published once per run with final totals.
	SubjectRunDone = "chatport.import.complete"
)

// FileSummary reports one finished input file.
type FileSummary struct {
	Path          string `json:"path"`
	Conversations int    `json:"conversations"`
	Files         int    `json:"files"`
	Errors        int    `json:"errors"`
}

// RunSummary reports the whole run.
type RunSummary struct {
	Files         int    `json:"files"`
	Conversations int    `json:"conversations"`
	Statements    int    `json:"statements"`
	Errors        int    `json:"errors"`
	FinishedAt    string `json:"finished_at"`
}

type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewPublisher connects to NATS. Connection problems after startup are logged
// and retried by the client itself.
func NewPublisher(url string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Publisher{conn: nc, logger: logger}, nil
}

func (p *Publisher) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return p.conn.Publish(subject, payload)
}

func (p *Publisher) Close() {
	_ = p.conn.Drain()
	p.conn.Close()
}
