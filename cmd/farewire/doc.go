// Package main hosts the farewire CLI entrypoint and command graph.
//
// The Cobra-based command tree runs pipeline stages against the shared deal
// store, sweeps the failure ledger, and surfaces store state for operators.
// It centralizes configuration resolution, store backend selection, and
// structured logging setup so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
