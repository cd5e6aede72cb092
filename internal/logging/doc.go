// Package logging provides file-based logging with rotation for Trackerd.
// The serve command always writes its log to ~/.trackerd/logs/server.log
// (and also to stderr when running in the foreground). Other commands write
// debug-level logs there only when the --debug flag is set; without it they
// log to stderr only.
package logging
