package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"carehub/internal/common/errors"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// ready probes every dependency in parallel and answers 503 listing the
// ones that failed.
func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.config.ReadyTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		failed = map[string]string{}
	)
	for name, check := range s.Ready {
		wg.Add(1)
		go func(name string, check func(context.Context) error) {
			defer wg.Done()
			if err := check(ctx); err != nil {
				mu.Lock()
				failed[name] = err.Error()
				mu.Unlock()
			}
		}(name, check)
	}
	wg.Wait()

	if len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for name := range failed {
			names = append(names, name)
		}
		sort.Strings(names)
		s.logger.Warn("readiness check failed", map[string]interface{}{"dependencies": names})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"failed": failed,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) appConfig(w http.ResponseWriter, r *http.Request) {
	if s.AppShell == nil || s.AppShell.Current() == nil {
		s.writeError(w, r, errors.NewResourceNotFoundError("app_shell", "no app shell config loaded"))
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, s.AppShell.Current())
}
