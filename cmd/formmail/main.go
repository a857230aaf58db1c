// Command formmail relays the site's contact and bug-report forms by email.
package main

import (
	"context"
	"os"

	"github.com/dalemusser/formmail/app"
	"github.com/dalemusser/formmail/internal/app/bootstrap"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		os.Exit(1)
	}
}
