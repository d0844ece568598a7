// Command agentdesk-echo is a minimal plugin agent. Installed as
// <plugin_dir>/echo/echo it answers every query with the query itself.
package main

import (
	"github.com/harun/agentdesk/pkg/plugin"
)

func main() {
	plugin.Serve(newEcho())
}
