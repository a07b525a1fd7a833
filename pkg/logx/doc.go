// Package logx configures tempobot's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional forwarding of warnings to the Telegram chat (min-level + rate limiting)
package logx
