// Command emdinfo inspects electron microscopy files and converts legacy
// instrument formats to EMD containers.
//
// Usage:
//
//	emdinfo tree scan.dm3
//	emdinfo frame --group 0 --slice h,v,3 series.ser
//	emdinfo convert image.tif image.emd
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
