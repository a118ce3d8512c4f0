package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/config"
	"go.viam.com/facebox/display"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/overlay"
	"go.viam.com/facebox/rimage"
	"go.viam.com/facebox/vision/facedetection"
)

type detectRow struct {
	file   string
	faces  int
	box    *facedetection.NormalizedBox
	rect   display.Rect
	errMsg string
}

// DetectAction runs the configured detector on each image named on the command line and prints
// the primary face of each, both normalized and in the image's own pixels.
func DetectAction(c *cli.Context) error {
	files := c.Args().Slice()
	if len(files) == 0 {
		return errors.New("no image files given")
	}
	logger := logging.NewLogger("facebox")
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	} else {
		logger.SetLevel(logging.WARN)
	}

	cfg, err := config.Read(c.Context, c.String(flagConfig), logger)
	if err != nil {
		return err
	}
	detector, err := facedetection.NewDetector(c.Context, cfg.Detector, logger.Sublogger("detection"))
	if err != nil {
		return err
	}
	timeout, err := cfg.Pipeline.Timeout()
	if err != nil {
		return err
	}
	stage, err := facedetection.NewStage(detector, logger.Sublogger("detection"),
		facedetection.WithTimeout(timeout),
		facedetection.WithPostprocessors(cfg.Pipeline.Postprocessors()...))
	if err != nil {
		return err
	}

	rows := make([]detectRow, len(files))
	g, ctx := errgroup.WithContext(c.Context)
	g.SetLimit(max(1, c.Int(flagParallelism)))
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			rows[i].file = file
			img, err := rimage.ReadImageFromFile(file)
			if err != nil {
				rows[i].errMsg = err.Error()
				return nil
			}
			res := stage.Detect(ctx, camera.NewRGBAFrame(img, uint64(i+1), time.Now()))
			if res.Err != nil {
				rows[i].errMsg = res.Err.Error()
				return ctx.Err()
			}
			rows[i].faces = len(res.Observations)
			if primary, ok := res.Primary(); ok {
				rows[i].box = &primary.BoundingBox
				rows[i].rect = overlay.MapToDisplay(primary.BoundingBox, display.RectFromImage(img.Bounds()))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, detectTable(rows))
	return nil
}

func detectTable(rows []detectRow) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "File", "Faces", "Primary (normalized)", "Primary (pixels)", "Error"})
	for i, row := range rows {
		primary, pixels := "", ""
		if row.box != nil {
			primary = fmt.Sprintf("x:%.3f y:%.3f w:%.3f h:%.3f", row.box.X, row.box.Y, row.box.Width, row.box.Height)
			pixels = row.rect.String()
		}
		t.AppendRow(table.Row{i + 1, filepath.Base(row.file), row.faces, primary, pixels, row.errMsg})
	}
	return t.Render()
}
