package metrics

import (
	"context"

	"shared-basket/internal/logger"
	"shared-basket/internal/shared"
)

// CallRecorder fans a model call out to the SQLite store and prometheus.
type CallRecorder struct {
	store      *Store
	collectors *Collectors
	log        *logger.Logger
}

func NewCallRecorder(store *Store, collectors *Collectors, log *logger.Logger) *CallRecorder {
	if log == nil {
		log = logger.Nop()
	}
	return &CallRecorder{store: store, collectors: collectors, log: log}
}

func (r *CallRecorder) RecordCall(ctx context.Context, meta shared.AgentMeta, outcome string) {
	r.collectors.ObserveCall(meta.AgentName, outcome, meta.Latency, meta.Usage.PromptTokens, meta.Usage.CompletionTokens)
	if r.store == nil {
		return
	}
	if err := r.store.RecordMeta(ctx, meta, outcome); err != nil {
		r.log.Warn(r.log.WithField(ctx, "agent", meta.AgentName), "metrics.record_failed", err)
	}
}
