package main

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// startJanitor schedules a daily purge of request-log rows from previous
// days. The quota is enforced by the day key, not by row age; the purge just
// keeps the table from growing forever.
func startJanitor(ctx context.Context, requests *PgRequestLog) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc("@daily", func() {
		n, err := requests.PurgeBefore(ctx, time.Now())
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("janitor: purge: %v", err)
			}
			return
		}
		if n > 0 {
			log.Printf("janitor: purged %d stale request rows", n)
		}
	})
	if err != nil {
		log.Printf("janitor: schedule: %v", err)
		return c
	}
	c.Start()
	log.Printf("janitor: daily purge scheduled")
	return c
}
