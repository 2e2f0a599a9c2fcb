package remote

import (
	"context"
	"time"

	"github.com/repostash/repostash/internal/logging"
)

// Poller periodically reads the remote sync metadata and feeds the watcher
// when its revision differs from the last one seen. Object stores have no
// native change feed, so polling stands in for change notifications.
type Poller struct {
	mirror   *Mirror
	watcher  *Watcher
	interval time.Duration
	log      logging.Logger

	lastRevision string
}

func NewPoller(mirror *Mirror, watcher *Watcher, interval time.Duration, log logging.Logger) *Poller {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Poller{
		mirror:   mirror,
		watcher:  watcher,
		interval: interval,
		log:      log.With("component", "poller"),
	}
}

// Run polls until ctx is cancelled. The first observed revision is recorded
// without notifying, so a freshly started daemon does not treat existing
// remote data as a change.
func (p *Poller) Run(ctx context.Context) {
	p.lastRevision = p.currentRevision(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	rev := p.currentRevision(ctx)
	if rev == p.lastRevision {
		return
	}
	p.log.Debug(ctx, "remote revision changed", "revision", rev)
	p.lastRevision = rev
	p.watcher.Notify([]string{MetaKey})
}

func (p *Poller) currentRevision(ctx context.Context) string {
	meta := p.mirror.Meta(ctx)
	if meta == nil {
		return ""
	}
	return meta.Revision
}
