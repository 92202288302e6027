package files

import (
	"github.com/dl-alexandre/gdsync/internal/logging"
)

// ProgressSink receives upload progress as a percentage in [0, 100]
type ProgressSink interface {
	Report(percent float64)
}

// ProgressFunc adapts a function to ProgressSink
type ProgressFunc func(percent float64)

func (f ProgressFunc) Report(percent float64) { f(percent) }

// progressReporter turns the store's (sent, total) chunk callbacks into
// percentages. Reporting is synchronous; a panicking sink is recovered and
// silenced for the rest of the transfer.
type progressReporter struct {
	sink   ProgressSink
	total  int64
	last   float64
	logger logging.Logger
}

// newProgressReporter returns nil when there is no sink or the length is
// unknown, in which case no progress is reported at all.
func newProgressReporter(sink ProgressSink, total int64, logger logging.Logger) *progressReporter {
	if sink == nil || total <= 0 {
		return nil
	}
	return &progressReporter{sink: sink, total: total, last: -1, logger: logger}
}

// update matches googleapi.ProgressUpdater. The store's total is ignored;
// it is zero for streamed media.
func (p *progressReporter) update(sent, _ int64) {
	percent := float64(sent) / float64(p.total) * 100
	if percent > 100 {
		percent = 100
	}
	p.report(percent)
}

// done reports completion once the store has acknowledged the upload.
// Uploads that fit in one request never trigger a chunk callback.
func (p *progressReporter) done() {
	if p.last < 100 {
		p.report(100)
	}
}

func (p *progressReporter) report(percent float64) {
	if p.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("Progress sink panicked, disabling progress", logging.F("panic", r))
			p.sink = nil
		}
	}()
	p.last = percent
	p.sink.Report(percent)
}

// callback exposes the reporter as a store progress hook, nil when disabled
func (p *progressReporter) callback() func(sent, total int64) {
	if p == nil {
		return nil
	}
	return p.update
}
