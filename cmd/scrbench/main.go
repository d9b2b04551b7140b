// Command scrbench generates benchmark datasets and checks symbolic
// regression candidates against the catalog's derivative constraints.
//
// Usage:
//
//	scrbench list
//	scrbench info FeynmanICh12Eq1
//	scrbench generate FeynmanICh12Eq1 --sample-size 500 --noise 0.01 --out train.csv
//	scrbench check FeynmanICh12Eq1 "mu*N_n" --display-names --backend autodiff
//	scrbench stationary FeynmanICh14Eq4
//	scrbench runs
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
