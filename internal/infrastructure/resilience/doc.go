/*
Package resilience guards calls to the upstream portal.

# Overview

Two pieces live here: a circuit breaker that stops hammering the portal
once it is clearly down, and the backoff schedule the fetcher waits on
between attempts.

# Circuit breaker

	breaker := resilience.New("portal", resilience.Settings{
		Timeout:     30 * time.Second,
		ReadyToTrip: resilience.TripAfter(5),
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	data, err := resilience.Call(breaker, func() (any, error) {
		return fetcher.Fetch(ctx, q)
	})

States move as follows:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open

# Backoff

	b := resilience.Backoff{Base: time.Second, Mode: resilience.Linear}
	if err := resilience.Sleep(ctx, b.Delay(attempt)); err != nil {
		return err
	}
*/
package resilience
