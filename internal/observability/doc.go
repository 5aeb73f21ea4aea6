// Package observability builds the process logger.
//
// Components receive a *zap.Logger through their constructors; nothing in
// the relay reaches for a global logger.
package observability
