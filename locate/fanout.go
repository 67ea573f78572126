package locate

import (
	"context"

	"github.com/nanoncore/nano-onulocator/credentials"
	"github.com/nanoncore/nano-onulocator/logging"
	"github.com/nanoncore/nano-onulocator/metrics"
	"github.com/nanoncore/nano-onulocator/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// hit is the single result slot of a search
type hit struct {
	target types.Target
	cred   types.Credential
	match  types.TerminalMatch
}

// search asks every target with usable credentials whether it serves serial.
// The first answer wins; the remaining sessions are canceled and not waited
// for. Per-target failures are logged and never returned.
func (s *Service) search(parent context.Context, serial string, targets []types.Target, fallback types.Credential) (*hit, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	log := logging.WithOperation("search").WithField("serial", serial)

	found := make(chan hit, 1)
	settled := make(chan struct{})

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	go func() {
		defer close(settled)
		for _, target := range targets {
			cred, ok := credentials.Resolve(target, fallback)
			if !ok {
				log.WithField("device", target.Address).Warn("skipping OLT without credentials")
				metrics.RecordSession(string(target.Vendor), metrics.OutcomeSkipped)
				continue
			}
			if ctx.Err() != nil {
				break
			}

			target := target
			g.Go(func() error {
				s.searchOne(ctx, cancel, target, cred, serial, found, log)
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case h := <-found:
		return &h, nil
	case <-settled:
		select {
		case h := <-found:
			return &h, nil
		default:
		}
		if err := parent.Err(); err != nil {
			return nil, err
		}
		return nil, types.ErrNotFound
	case <-parent.Done():
		return nil, parent.Err()
	}
}

func (s *Service) searchOne(ctx context.Context, cancel context.CancelFunc, target types.Target, cred types.Credential, serial string, found chan<- hit, log *logrus.Entry) {
	if ctx.Err() != nil {
		return
	}

	metrics.FanoutInflight.Inc()
	defer metrics.FanoutInflight.Dec()

	log = log.WithField("device", target.Address)

	drv, err := s.newDriver(target, cred, s.timeouts)
	if err != nil {
		log.WithError(err).Warn("cannot build driver")
		return
	}

	if err := drv.Connect(ctx); err != nil {
		log.WithError(err).Debug("OLT did not answer")
		return
	}
	match, err := drv.FindTerminal(ctx, serial)
	_ = drv.Disconnect(context.Background())

	if err != nil {
		log.WithError(err).Debug("search failed")
		return
	}
	if match == nil {
		return
	}

	select {
	case found <- hit{target: target, cred: cred, match: *match}:
		log.WithField("interface", match.Interface).Info("terminal found")
		cancel()
	default:
		log.WithField("interface", match.Interface).Warn("terminal also found on another OLT, ignoring")
	}
}
