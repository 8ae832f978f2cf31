/*
Package monitor keeps a live picture of a remote leaky-bucket admission
service and drives the operator actions against it.

A Client combines:

  - a Poller that fetches GET /metrics on a schedule and appends each
    snapshot to a bounded history,
  - a Dispatcher that sends bursts of GET /api probes one after another,
  - a Reconciler that edits and submits the bucket configuration,
  - a Resetter that zeroes the service counters.

All of them publish through a Store. Every mutation produces a new State
generation under one lock, so readers never observe a half-applied update
such as a cleared history next to stale counters. Each action kind admits a
single caller at a time; a second caller gets errors.ErrBusy. Different
kinds may run concurrently with each other and with polling.

Poll failures and individual probe failures are logged and counted and
otherwise ignored; the next cycle retries. Config and reset failures are
returned to the caller and leave local state untouched.
*/
package monitor
