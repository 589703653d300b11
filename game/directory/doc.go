// Package directory keeps the process-wide mapping from join tokens to live
// games. Tokens are short, case-insensitive and safe to read aloud.
package directory
