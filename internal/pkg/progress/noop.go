package progress

import (
	"teams-chat-exporter/internal/domain"
	"teams-chat-exporter/internal/ports"
)

// NoopReporter — репортер, который ничего не выводит.
type NoopReporter struct{}

var _ ports.ProgressReporter = NoopReporter{}

func (NoopReporter) RunStarted(domain.Identity, int) {}

func (NoopReporter) ChatStarted(int, int, string) {}

func (NoopReporter) ChatFinished(int, int, int, error) {}

func (NoopReporter) RunFinished(*domain.RunStats) {}
