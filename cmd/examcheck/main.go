// Command examcheck checks which laboratory exams each dialysis patient
// still owes for a reference month.
package main

import (
	"os"

	"github.com/nefron/examcheck/internal/exitcode"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.UsageError)
	}
}
