// Command lmapd is the Measurement Agent daemon (spec §1-§9): it
// loads an Lmap configuration document, arms the Event Engine, and
// runs Schedules/Actions until a shutdown or reload signal arrives.
package main

import "os"

func main() {
	os.Exit(Execute())
}
