package main

import (
	"context"
	"fmt"
	"os"

	"github.com/puppetlabs/relay-notify/pkg/cmd"
	"github.com/puppetlabs/relay-notify/pkg/errmark"
)

func main() {
	c, err := cmd.NewRootCommand()
	if err != nil {
		fmt.Fprintf(os.Stderr, "relay-notify: %+v\n", err)
		os.Exit(1)
	}

	if err := c.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "relay-notify: %+v\n", err)

		if errmark.IsUser(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
