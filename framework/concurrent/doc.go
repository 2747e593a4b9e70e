// Package concurrent provides small generic helpers for running work in
// parallel.
//
// # ForEachWithLimit
//
// Delete every pod of a deployment, five at a time:
//
//	err := concurrent.ForEachWithLimit(ctx, pods, 5, func(ctx context.Context, pod corev1.Pod) error {
//	    return deletePod(ctx, pod.Name)
//	})
//
// # MapWithLimit
//
// Transform items with a concurrency limit while preserving order:
//
//	logs, err := concurrent.MapWithLimit(ctx, pods, 3, func(ctx context.Context, pod corev1.Pod) (string, error) {
//	    return fetchLogs(ctx, pod)
//	})
//
// # Go
//
// Start a fire-and-forget task and join it later:
//
//	task := concurrent.Go(ctx, func(ctx context.Context) (Outcome, error) {
//	    return deliver(ctx)
//	})
//	...
//	outcome, err := task.Wait(joinCtx)
//
// Errors from the batch helpers are aggregated with errors.Join; every item
// is attempted even if some fail.
package concurrent
