package main

// Exit codes.
const (
	ExitSuccess     = 0 // Success (possibly with per-file warnings)
	ExitError       = 1 // General error (runtime failure, or every input file failed)
	ExitConfigError = 2 // Configuration error (unknown format or log level)
	ExitNoRecords   = 3 // --fail-on-empty set and the run produced no records
)
