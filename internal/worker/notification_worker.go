package worker

import (
	"context"
	"sync"

	"github.com/spec-kit/query-triage/internal/service"
)

// StartNotificationWorker registers export handlers and drains them in the
// background. The returned func blocks until the worker has stopped.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService) func() {
	if !notificationService.Enabled() {
		return func() {}
	}
	notificationService.RegisterHandlers()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		notificationService.Run(ctx)
	}()
	return wg.Wait
}
