// Package retry retries idempotent operations that fail transiently, such as
// REST reads against a Kie Server whose pod is being rescheduled.
//
// Delays grow exponentially with jitter (computed with apimachinery's
// wait.Backoff) and are capped by MaxDelay:
//
//	info, err := retry.DoWithData(ctx, func(ctx context.Context) (*model.KieServerInfo, error) {
//	    return client.GetServerInfo(ctx)
//	}, retry.WithMaxAttempts(5), retry.WithRetryIf(server.IsRemoteUnavailable))
//
// Return retry.Permanent(err) from the callback to stop immediately. The
// wrapped error is handed back to the caller without the marker.
package retry
