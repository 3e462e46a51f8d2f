package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/ecorisk-service/internal/config"
	"github.com/couchcryptid/ecorisk-service/internal/domain"
	"github.com/couchcryptid/ecorisk-service/internal/session"
)

const batchTimeout = 10 * time.Millisecond

// Publisher produces simulation results to a Kafka topic.
// It implements session.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured results topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	// Reports arrive one per request, so each write is flushed on its own.
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.ResultsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    1,
		BatchTimeout: batchTimeout,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes the report summary. The full sample is not included.
func (p *Publisher) Publish(ctx context.Context, report session.Report) error {
	msg, err := serializeToMessage(report)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish report %s: %w", report.RunID, err)
	}
	p.logger.Debug("report published", "run_id", report.RunID, "topic", p.writer.Topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// ResultMessage is the JSON value of a results topic message.
type ResultMessage struct {
	RunID       string                  `json:"run_id"`
	GeneratedAt time.Time               `json:"generated_at"`
	Region      string                  `json:"region,omitempty"`
	Unit        string                  `json:"unit"`
	Params      domain.SimulationParams `json:"params"`
	Summary     domain.SampleSummary    `json:"summary"`
	Warnings    []domain.Warning        `json:"warnings"`
	TopRegions  domain.RegionRanking    `json:"top_regions"`
}

// serializeToMessage marshals a report into a Kafka message keyed by run ID.
func serializeToMessage(report session.Report) (kafkago.Message, error) {
	data, err := json.Marshal(ResultMessage{
		RunID:       report.RunID,
		GeneratedAt: report.GeneratedAt,
		Region:      report.Region,
		Unit:        report.Unit,
		Params:      report.Params,
		Summary:     report.Summary,
		Warnings:    report.Warnings,
		TopRegions:  report.TopRegions,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(report.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "region", Value: []byte(report.Region)},
			{Key: "generated_at", Value: []byte(report.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
