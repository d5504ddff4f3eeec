// Package retry provides backoff policies for transient failures.
//
// Config.Delay computes the wait before a numbered attempt and is what the
// stream connection uses to size its reconnect schedule:
//
//	policy := retry.Fixed(5 * time.Second)
//	policy.Delay(1) // 5s
//	policy.Delay(7) // 5s
//
// Exponential policies grow by Multiplier and are capped at MaxDelay:
//
//	policy := retry.Config{InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2}
//	policy.Delay(3) // 4s
//
// Do runs a blocking operation with the same policy, used for one-off startup
// work such as the first broker connection:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return bridge.Connect(ctx)
//	})
//
// Jitter adds up to 25% on top of the computed delay and is off unless
// AddJitter is set.
package retry
