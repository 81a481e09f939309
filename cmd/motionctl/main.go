// Command motionctl runs the motion coordination engine as a service,
// replays scenario fixtures, inspects decision journals and drives a
// running service over its control API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}
