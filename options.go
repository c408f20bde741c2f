package vstream

import (
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// engineConfig collects the options applied to Open. It is built up by
// applying every Option in order and then defaulted.
type engineConfig struct {
	log       logger.Logger
	chunkSize int
	registerer prometheus.Registerer
}

// Option configures an Engine at Open time, mirroring the teacher's
// massifs.Option functional-option pattern.
type Option func(*engineConfig)

// WithLogger sets the structured logger the engine and its writers log
// through. Unset, the engine logs nowhere.
func WithLogger(log logger.Logger) Option {
	return func(c *engineConfig) { c.log = log }
}

// WithChunkSize overrides the hash-tree adapter's chunk size. Unset or 0,
// the adapter's default (hashtree.DefaultChunkSize) is used. A negative
// size makes Open return an error wrapping hashtree.ErrBadChunkSize.
func WithChunkSize(size int) Option {
	return func(c *engineConfig) { c.chunkSize = size }
}

// WithMetrics registers the engine's Prometheus collectors against reg.
// Unset, no metrics are registered.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *engineConfig) { c.registerer = reg }
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		// logger.Sugar is nil until something calls logger.New; default to
		// a guaranteed non-nil NOOP logger rather than relying on the
		// caller (or an earlier logger.New elsewhere in the process) to
		// have initialized it first, mirroring how the teacher's own tests
		// always call logger.New before touching logger.Sugar.
		log: logger.New("NOOP"),
	}
}
