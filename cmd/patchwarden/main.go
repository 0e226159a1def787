// patchwarden files risk-tiered change proposals, gates them behind
// quorum review, and applies approved patches as commits.
package main

import "github.com/ppiankov/patchwarden/internal/cli"

func main() {
	cli.Execute()
}
