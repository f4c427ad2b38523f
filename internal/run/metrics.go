package run

import (
	"errors"
	"net/http"

	"github.com/Tesseric/careless-whisper/internal/metrics"
)

func (s *Server) metricsServe(done <-chan struct{}) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{
		Addr:    s.cfg.Metrics.Addr,
		Handler: mux,
	}
	go func() {
		<-done
		_ = server.Close()
	}()
	s.logger.Infof("metrics listening on http://%s/metrics", s.cfg.Metrics.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warnf("metrics server: %v", err)
	}
}
