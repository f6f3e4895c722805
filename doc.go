// Package delta provides the domain types shared by the Delta trading client.
//
// The client talks to a remote simulated trading platform. It never computes
// prices, matches orders or keeps a ledger: it consumes those as a remote
// service and reconciles what the service returns into a local read model.
//
// The main building blocks live in sub packages:
//   - session: the credential token, the derived identity, and the PIN gate
//     that must be passed before any protected view is reachable.
//   - api: the HTTP client of the platform's REST contract.
//   - feed: a generic poller that repeatedly fetches one resource.
//   - fusion: the board merging all feeds into one consistent view, and the
//     pure projections computed over it (valuation, equity, top movers...).
//   - wallet: the deposit/withdraw wizard moving funds in and out.
//   - renderer: markdown rendering of the read model.
//
// This package serves as the foundation of the `dtc` command-line tool.
package delta
