// Package main hosts the reelshelf CLI entrypoint and command graph.
//
// The Cobra-based command tree maps terminal invocations onto the load
// stages, warehouse statistics, source readiness checks and configuration
// scaffolding. It centralizes configuration resolution, the run lock and
// structured logging setup so the stages stay free of process wiring.
package main
