// Package ratelimit paces requests against the source blog and bounds
// the pipeline's aggregate request rate.
//
// Available Implementations:
//
// Token Bucket:
//   - Fixed capacity bucket that refills after a specified period
//   - With capacity 1 it acts as a constant-gap pacer; the discovery
//     crawler uses it between page fetches
//
// Sliding Window:
//   - Tracks requests within a moving time window
//   - Used by the fetch layer to honor a requests-per-minute ceiling
//
// Host Pacer:
//   - Inserts a fixed pause between consecutive requests each worker
//     makes to the source host; third-party asset hosts pass through
//     unthrottled
//
// Interface:
//
// The bucket and window implement the Limiter interface:
//   - Allow() bool - Check if a request is allowed
//   - Wait() - Block until a request is allowed
//   - Reset() - Reset the limiter state
//
// Usage:
//
//	// Sliding window: at most 120 requests per minute
//	limiter := ratelimit.NewSlidingWindow(120, time.Minute)
//	limiter.Wait()
//	// Proceed with request
//
//	// Pause between source-host requests
//	pacer := ratelimit.NewHostPacer("blog.example.com", 500*time.Millisecond)
//	if err := pacer.Pause(ctx, url); err != nil {
//	    return err // cancelled
//	}
package ratelimit
