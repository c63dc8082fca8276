// Package logx is hwbot's structured logging: a small Logger wrapper over
// zerolog with typed Field helpers.
//
// Console output is human readable; the optional file sink writes JSON.
// Service.Apply swaps sinks and level at runtime, so loggers handed out
// earlier pick up a config reload without being rebuilt.
package logx
