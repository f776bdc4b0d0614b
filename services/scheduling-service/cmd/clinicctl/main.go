// Command clinicctl is the operator CLI for the scheduling database and action links.
package main

import (
	"fmt"
	"os"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/libs/config"
)

func main() {
	_ = config.LoadDotEnv()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
