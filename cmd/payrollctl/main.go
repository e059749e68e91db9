// Command payrollctl runs the salary engine offline: formulas, structures
// and tax tables are read from flags or YAML files and results are printed
// as JSON.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
