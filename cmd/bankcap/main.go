package main

import (
	"bankcap/cmd/bankcap/commands"
	"bankcap/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
