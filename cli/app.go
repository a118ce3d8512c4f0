// Package cli contains the facebox command line interface.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	flagConfig      = "config"
	flagDebug       = "debug"
	flagWatch       = "watch"
	flagDuration    = "duration"
	flagParallelism = "parallel"
)

var configFlag = &cli.StringFlag{
	Name:     flagConfig,
	Aliases:  []string{"c"},
	Usage:    "load configuration from `FILE`",
	Required: true,
}

var app = &cli.App{
	Name:            "facebox",
	Usage:           "draw a box around the face in front of the camera",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:  "run",
			Usage: "run the camera, detector and display until interrupted",
			Flags: []cli.Flag{
				configFlag,
				&cli.BoolFlag{
					Name:  flagWatch,
					Usage: "rebuild everything when the config file changes",
				},
				&cli.DurationFlag{
					Name:  flagDuration,
					Usage: "stop after this long instead of waiting for an interrupt",
				},
			},
			Action: RunAction,
		},
		{
			Name:      "detect",
			Usage:     "run the configured detector once on each image file",
			ArgsUsage: "<image> [image...]",
			Flags: []cli.Flag{
				configFlag,
				&cli.IntFlag{
					Name:  flagParallelism,
					Usage: "number of images to detect at once",
					Value: 4,
				},
			},
			Action: DetectAction,
		},
		{
			Name:   "models",
			Usage:  "list the registered camera and detector models",
			Action: ModelsAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
