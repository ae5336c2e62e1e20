// Command bridgelog records a strain-gauge bridge through an ADS1263.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/itohio/gobridge/pkg/session"
)

func main() {
	cmd := newRootCommand(os.Stdout)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		reportError(cmd.ErrOrStderr(), err)
		os.Exit(1)
	}
}

// reportError prints a diagnostic naming the failed stage when there is one.
func reportError(w io.Writer, err error) {
	var se *session.StageError
	if errors.As(err, &se) {
		fmt.Fprintf(w, "bridgelog: %s stage failed: %v\n", se.Stage, se.Err)
		return
	}
	fmt.Fprintf(w, "bridgelog: %v\n", err)
}
