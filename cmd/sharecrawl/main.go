// Command sharecrawl enumerates network drives and SharePoint Server farms
// into searchable documents.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
