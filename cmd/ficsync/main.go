package main

import (
	"ficsync/cmd/ficsync/commands"
	"ficsync/lib/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext()
	defer cancel()
	commands.ExecuteContext(ctx)
}
