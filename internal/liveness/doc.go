// Package liveness keeps one open admin console usable across idle periods,
// hidden tabs and silent network failures.
//
// A Manager owns three periodic tasks for its console: the session refresher
// (every 4 minutes), the connection prober (every 15 seconds, 5 second timeout)
// and the idle check (every 5 minutes). The browser feeds it user input and
// tab visibility changes over the console socket. Recovery actions go out
// through the collaborators in internal/domain: the session source, the
// realtime reconnector, the navigator and the refresh publisher.
//
// Every periodic task carries an in-flight flag. A tick that arrives while the
// previous run is still going is skipped, so runs of one task never overlap.
package liveness
