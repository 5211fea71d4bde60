package handlers

import (
	"net/http"

	"github.com/ebk1996/services/internal/httpserver/deps"
	"github.com/ebk1996/services/internal/logger"
)

// Reload triggers a manual re-import of the listings seed file. The
// trigger is non-blocking: one pending trigger is enough, a second one
// while the reloader is busy just reports back.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.SeedReloadTrigger == nil {
			w.WriteHeader(http.StatusNotFound)
			if _, err := w.Write([]byte("❌ No seed file configured\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
			return
		}

		select {
		case d.SeedReloadTrigger <- struct{}{}:
			d.Logger.Info("manual seed reload triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusAccepted)
			if _, err := w.Write([]byte("✅ Seed reload triggered\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
		default:
			d.Logger.Warn("seed reload already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusTooManyRequests)
			if _, err := w.Write([]byte("⏳ Seed reload already in progress, please wait\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
		}
	}
}
