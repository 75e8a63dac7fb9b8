package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cc := newCommandContext(openEngine)
	err := newRootCommand(cc).Execute()
	cc.close()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
