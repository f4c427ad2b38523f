package run

import (
	"context"
	"time"
)

func (s *Server) hookWorker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.hookCh:
			if maxAge := time.Duration(s.cfg.Hook.MaxLatencyMS) * time.Millisecond; maxAge > 0 && time.Since(job.Timestamp) > maxAge {
				s.met.RecordHookDropped()
				s.logger.Warnf("hook job stale (%s old), dropping", time.Since(job.Timestamp).Round(time.Millisecond))
				continue
			}
			if err := s.hook.Run(ctx, job); err != nil {
				s.logger.Errorf("hook: %v", err)
				continue
			}
			s.met.RecordHookSent()
		}
	}
}
