package retention

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"medshift/config"
	"medshift/core/store"
	"medshift/core/utils"

	"github.com/robfig/cron/v3"
)

// Worker periodically purges expired invites and attachment files whose
// database record is gone.
type Worker struct {
	cfg       *config.AppConfig
	invites   store.InvitesStore
	incidents store.IncidentsStore
	audits    store.AuditStore
	logger    *utils.Logger

	cron *cron.Cron
}

func NewWorker(cfg *config.AppConfig, invites store.InvitesStore, incidents store.IncidentsStore, audits store.AuditStore, logger *utils.Logger) *Worker {
	return &Worker{cfg: cfg, invites: invites, incidents: incidents, audits: audits, logger: logger}
}

func (w *Worker) Start(ctx context.Context) error {
	if w == nil || !w.cfg.Retention.Enabled {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(w.cfg.Retention.Schedule, func() {
		if err := w.RunOnce(ctx, time.Now().UTC()); err != nil && w.logger != nil {
			w.logger.Errorf("retention pass failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	w.cron = c
	c.Start()
	return nil
}

func (w *Worker) Stop() {
	if w == nil || w.cron == nil {
		return
	}
	stopCtx := w.cron.Stop()
	<-stopCtx.Done()
}

func (w *Worker) RunOnce(ctx context.Context, now time.Time) error {
	purged, err := w.invites.PurgeExpiredInvites(ctx, now)
	if err != nil {
		return err
	}
	if purged > 0 {
		if w.logger != nil {
			w.logger.Printf("retention: purged %d expired invites", purged)
		}
		if w.audits != nil {
			w.audits.Log(ctx, "system", "retention.invites", strconv.FormatInt(purged, 10))
		}
	}
	removed, err := w.sweepOrphanedFiles(ctx)
	if err != nil {
		return err
	}
	if removed > 0 && w.logger != nil {
		w.logger.Printf("retention: removed %d orphaned attachment files", removed)
	}
	return nil
}

// sweepOrphanedFiles walks the uploads tree and deletes files that no
// attachment row references anymore.
func (w *Worker) sweepOrphanedFiles(ctx context.Context) (int, error) {
	root := filepath.Join(w.cfg.Incidents.UploadsDir, "incidents")
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, dir := range entries {
		if !dir.IsDir() {
			continue
		}
		incidentID, err := strconv.ParseInt(dir.Name(), 10, 64)
		if err != nil {
			continue
		}
		atts, err := w.incidents.ListIncidentAttachments(ctx, incidentID)
		if err != nil {
			return removed, err
		}
		known := make(map[string]struct{}, len(atts))
		for _, att := range atts {
			known[att.ID] = struct{}{}
		}
		files, err := os.ReadDir(filepath.Join(root, dir.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			if _, ok := known[f.Name()]; ok {
				continue
			}
			if err := os.Remove(filepath.Join(root, dir.Name(), f.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
