// Package main is the facebox command itself.
package main

import (
	"log"
	"os"

	"go.viam.com/facebox/cli"
	_ "go.viam.com/facebox/components/register"
	_ "go.viam.com/facebox/vision/register"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
