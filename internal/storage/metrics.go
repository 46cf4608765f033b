package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsStoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_arb_storage_records_stored_total",
		Help: "Records persisted by the storage sink, by event kind",
	}, []string{"kind"})

	RecordWriteErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_arb_storage_write_errors_total",
		Help: "Failed storage writes, by event kind",
	}, []string{"kind"})
)
