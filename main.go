// Package main is the entry point for the docingest service, a multi-tenant
// document ingestion pipeline that converts uploaded or scraped files into
// searchable, embedded text chunks.
package main

import "docingest/cmd"

func main() {
	cmd.Execute()
}
