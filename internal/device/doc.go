// Package device holds the domain model for SwitchBot accessories bridged
// into Gray Logic.
//
// A device is described by an immutable Identity, a Role selected once from
// configuration (Bot or Contact), and a Mirror holding the desired state set
// by the host, the last observed state confirmed by a transport, and the
// per-device sync status.
//
// # Key Types
//
//   - Identity: identifier, name, type tag, hub and derived hardware address
//   - Role: closed set of variants (BotRole, ContactRole)
//   - Observed: closed set of observed states (BotState, ContactState)
//   - Mirror: desired/observed snapshot plus SyncStatus bookkeeping
//   - Transport: which transport serves a device (Select)
//   - Error: classified failure (Remote, Local, Config, Unknown)
//
// # Sync Status
//
// The refresh loop and the write-coalescing loop share one Mirror. They never
// block each other: a refresh only starts from Idle (TryBeginRefresh) and a
// write flush takes ownership unconditionally (BeginWrite). A refresh result
// arriving while a write owns the mirror is dropped. Each ownership carries
// an epoch, so a refresh that outlived a flush cannot release the refresh
// that followed it.
//
// # Thread Safety
//
// Identity and Role values are immutable. Mirror is safe for concurrent use.
package device
