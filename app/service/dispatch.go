package service

import (
	"context"
	"time"

	"ugc-forge/app/logger"
	"ugc-forge/app/notify"
)

const publishTimeout = 15 * time.Second

// dispatch publishes events in the background; failures are only logged.
func dispatch(log *logger.Logger, pub notify.Publisher, events ...notify.Event) {
	if pub == nil || len(events) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		for _, e := range events {
			if err := pub.Publish(ctx, e); err != nil {
				log.Warnf("publish %s event for %s failed: %v", e.Kind, e.ID, err)
			}
		}
	}()
}
