// Package services builds the renewal desk's collaborators from
// configuration.
//
// New wires the document store, audit sinks, LLM transport, budget ledger
// and brief orchestrator in dependency order. Both the daemon and the CLI
// use it so a locally run eval behaves like the server.
package services
