// connectsync CLI entry point
//
// connectsync mirrors SMS conversations, calls and shared files from KDE
// Connect devices by listening to the daemon on the session bus.
package main

import "github.com/jbctechsolutions/connectsync/internal/presentation/cli/commands"

func main() {
	commands.Execute()
}
