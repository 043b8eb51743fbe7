// Command tinyprog programs ATtiny devices through a TPI programmer sketch or avrdude.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(newApp(os.Stdout, os.Stderr)).Execute(); err != nil {
		os.Exit(1)
	}
}
