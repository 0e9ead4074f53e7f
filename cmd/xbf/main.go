// Command xbf encodes XBF schemas and manages tables of XBF records.
package main

import "os"

func main() {
	os.Exit(Main(os.Args[1:]))
}
