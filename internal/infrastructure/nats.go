package infrastructure

import (
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// JobEventSubjects is the subject space for backtest job lifecycle events:
// backtest.job.<job_id>.<status>.
const JobEventSubjects = "backtest.job.*.*"

// InitNATS connects and ensures the BACKTEST stream exists for job events.
func InitNATS(url string, logger *zap.Logger) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, nil, err
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     "BACKTEST",
		Subjects: []string{JobEventSubjects},
	})
	if err != nil {
		// If stream exists, we might need to update it
		_, err = js.UpdateStream(&nats.StreamConfig{
			Name:     "BACKTEST",
			Subjects: []string{JobEventSubjects},
		})
		if err != nil {
			logger.Warn("failed to create or update stream", zap.Error(err))
		}
	}

	return nc, js, nil
}
