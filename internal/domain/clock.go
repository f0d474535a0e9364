package domain

import "time"

// Clock supplies the current instant. Reconcilers and services take a Clock
// so deadline math can be pinned in tests.
type Clock func() time.Time

// UTCClock is the production clock.
func UTCClock() time.Time { return time.Now().UTC() }
