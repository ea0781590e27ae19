package storage

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InstrumentedStore wraps an ObjectStore and records per-operation
// Prometheus metrics.
type InstrumentedStore struct {
	next     ObjectStore
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// Instrumented wraps next and registers its collectors with reg.
func Instrumented(next ObjectStore, reg prometheus.Registerer) (*InstrumentedStore, error) {
	s := &InstrumentedStore{
		next: next,
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "filegateway",
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Object store operations by operation and outcome kind.",
			},
			[]string{"op", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "filegateway",
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Latency of object store calls. For get this covers opening the object only.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}

	for _, c := range []prometheus.Collector{s.ops, s.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	s.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	s.ops.WithLabelValues(op, outcome).Inc()
}

func (s *InstrumentedStore) Put(ctx context.Context, in PutInput) (*PutResult, error) {
	start := time.Now()
	res, err := s.next.Put(ctx, in)
	s.observe("put", start, err)
	return res, err
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) (*ObjectReader, error) {
	start := time.Now()
	res, err := s.next.Get(ctx, key)
	s.observe("get", start, err)
	return res, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.next.Delete(ctx, key)
	s.observe("delete", start, err)
	return err
}

func (s *InstrumentedStore) List(ctx context.Context, in ListInput) (*ListResult, error) {
	start := time.Now()
	res, err := s.next.List(ctx, in)
	s.observe("list", start, err)
	return res, err
}

var _ ObjectStore = (*InstrumentedStore)(nil)
