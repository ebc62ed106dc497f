// Package engine runs the per-device synchronisation loops.
//
// An Accessory owns one device's mirror and three goroutines:
//
//   - refresh loop: fetches status every refresh interval through the
//     selected transport; a tick that finds a write (or another refresh) in
//     flight is skipped, not queued.
//   - writer loop: coalesces SetOn intents and flushes once the debounce
//     window has passed without a new signal.
//   - scan loop (local radio devices only): a longer discovery pass every
//     scan cycle; the cloud is consulted only when the scan fails.
//
// Refresh and write never mutate the mirror concurrently. Failures are
// caught at the loop boundary, logged and pushed to the Sink as fault
// updates. A panic inside one iteration is recovered and reported the same
// way; it never stops the loop or affects another device.
package engine
