package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError writes an error message to stderr and returns the exit code.
func outputError(code int, format string, args ...interface{}) int {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	return code
}

// ExtractResponse summarizes a run on stdout when the converted output
// goes to a file.
type ExtractResponse struct {
	Status            string   `json:"status"`
	Output            string   `json:"output"`
	Format            string   `json:"format"`
	FilesProcessed    int      `json:"files_processed"`
	Records           int      `json:"records"`
	DuplicatesRemoved int      `json:"duplicates_removed"`
	Warnings          []string `json:"warnings,omitempty"`
	Errors            []string `json:"errors,omitempty"`
}
