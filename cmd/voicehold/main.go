package main

import (
	"context"
	"fmt"
	"os"

	"voicehold/internal/bootstrap"
)

func main() {
	if err := bootstrap.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "voicehold failed: %v\n", err)
		os.Exit(1)
	}
}
