/*
Package model defines the values exchanged with a leaky-bucket admission service.

A Snapshot is a point-in-time read of the service counters and bucket occupancy.
Snapshots are plain values: once decoded they are never mutated, only replaced.

	var snap model.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return err
	}
	point := model.NewHistoryPoint(snap, time.Local)

A Config is the pair of knobs the service accepts: bucket capacity and leak rate.
Rate is an opaque duration string ("1s", "500ms") interpreted by the service.
*/
package model
