// Package checkpoint saves cursor crawl progress so a long listing can be
// resumed with --resume after an interruption such as a rate limit or an
// expired session.
//
// A checkpoint is keyed by operation and target (for example "notes" and a
// user ID) and remembers the last cursor the server handed back, how many
// pages and items were collected, and which media URLs were already saved.
//
// Files live in the per-OS data directory unless a directory is given:
//   - Linux: ~/.local/share/xhs-scraper/checkpoints/
//   - macOS: ~/Library/Application Support/xhs-scraper/checkpoints/
//   - Windows: %APPDATA%/xhs-scraper/checkpoints/
//
// Writes go through a temp file and rename so a crash never leaves a
// truncated checkpoint behind.
package checkpoint
