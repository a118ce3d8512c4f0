package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/vision/facedetection"
)

// ModelsAction prints every registered camera and detector model.
func ModelsAction(c *cli.Context) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Kind", "Model"})
	for _, model := range camera.Models() {
		t.AppendRow(table.Row{"camera", model})
	}
	for _, model := range facedetection.Models() {
		t.AppendRow(table.Row{"detector", model})
	}
	fmt.Fprintln(c.App.Writer, t.Render())
	return nil
}
