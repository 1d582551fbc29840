package archive

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Schedule runs fn on a five-field cron spec. The returned scheduler is
// already started; stop it with Stop.
func Schedule(spec string, fn func()) (*cron.Cron, error) {
	cronParser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(cronParser), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	entryID, err := c.AddFunc(spec, fn)
	if err != nil {
		return nil, fmt.Errorf("invalid archive schedule %q: %w", spec, err)
	}
	c.Start()

	slog.Info("archive sweep scheduled",
		slog.String("schedule", spec),
		slog.Time("next", c.Entry(entryID).Next),
	)
	return c, nil
}
