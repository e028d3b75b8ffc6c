// Package aurum reconciles gold asset records and computes their capital
// gains tax. It is designed to keep working when its sources misbehave,
// degrading to partial or stale views rather than failing.
//
// The core functionalities include:
//   - Holdings Reconciliation: merging the records of the authoritative but
//     slow ledger with those of the fast, eventually consistent durable store
//     into one deduplicated view, cached per identity pair.
//   - Provenance: an append-only chain of owners per asset, extended by
//     ownership transfers written as new versions of the record.
//   - Tax Computation: short or long term capital gains from the monthly
//     price table, tolerant of missing prices and malformed dates.
//   - Lookup and Registration: resolving a single asset across both sources,
//     and registering new assets on the ledger and in the store.
//
// Sources are injected through the Ledger, LedgerRegistrar and AssetStore
// interfaces. The ledger, store and session packages provide their
// implementations, and the cmd package wires them into the `aurum`
// command-line tool and HTTP API.
package aurum
