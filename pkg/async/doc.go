// Package async runs background work outside of the request path.
//
// SafeGo executes a function in a goroutine with panic recovery, a timeout
// and error logging:
//
//	async.SafeGo(context.WithoutCancel(ctx), 30*time.Second, "user analytics refresh", func(ctx context.Context) error {
//		_, err := svc.UpdateUserAnalytics(ctx, userID)
//		return err
//	})
//
// Tracker does the same but keeps count of in-flight tasks so the server can
// drain them during graceful shutdown:
//
//	tracker := async.NewTracker()
//	svc := analytics.NewService(store, analytics.WithDispatcher(tracker.Go))
//	...
//	tracker.Shutdown(ctx)
package async
