// cligate exposes a cloud CLI to AI agents over MCP, behind a command
// policy that never executes credential-bearing commands and, in safe
// mode, refuses commands that change resources.
package main

import "github.com/ppiankov/cligate/internal/cli"

func main() {
	cli.Execute()
}
