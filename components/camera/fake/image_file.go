package fake

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/facebox/components/camera"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/resource"
	"go.viam.com/facebox/rimage"
	"go.viam.com/facebox/rimage/transform"
	"go.viam.com/facebox/utils"
)

// FileModel is the name of the image file replay source.
const FileModel = "image_file"

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

func init() {
	camera.RegisterSource(FileModel, resource.Registration[camera.Source, *FileConfig]{
		Constructor: func(ctx context.Context, conf *FileConfig, logger logging.Logger) (camera.Source, error) {
			return NewFileSource(conf, clock.New(), logger)
		},
	})
}

// FileConfig is the attribute struct for the image_file source.
type FileConfig struct {
	Dir              string                             `json:"dir,omitempty"`
	Files            []string                           `json:"files,omitempty"`
	FPS              float64                            `json:"fps,omitempty"`
	Loop             bool                               `json:"loop,omitempty"`
	CameraParameters *transform.PinholeCameraIntrinsics `json:"intrinsic_parameters,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (c *FileConfig) Validate(path string) error {
	if c.Dir == "" && len(c.Files) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "dir")
	}
	if c.FPS < 0 {
		return errors.Errorf("%s.fps: must be positive, got %v", path, c.FPS)
	}
	if c.CameraParameters != nil {
		if err := c.CameraParameters.CheckValid(); err != nil {
			return utils.NewConfigValidationError(path+".intrinsic_parameters", err)
		}
	}
	return nil
}

// FileSource replays image files in lexical order, one per tick. Files are delivered as encoded
// frames and only decoded downstream, so a corrupt file costs exactly one frame.
type FileSource struct {
	*tickingSource
	files      []string
	loop       bool
	intrinsics *transform.PinholeCameraIntrinsics
	logger     logging.Logger
}

// NewFileSource lists the configured files and returns a source replaying them.
func NewFileSource(conf *FileConfig, clk clock.Clock, logger logging.Logger) (*FileSource, error) {
	files := append([]string(nil), conf.Files...)
	if conf.Dir != "" {
		entries, err := os.ReadDir(conf.Dir)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot list image directory %s", conf.Dir)
		}
		for _, entry := range entries {
			if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				continue
			}
			files = append(files, filepath.Join(conf.Dir, entry.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, errors.Errorf("no image files found in %q", conf.Dir)
	}

	fps := conf.FPS
	if fps == 0 {
		fps = defaultFPS
	}
	fs := &FileSource{
		files:      files,
		loop:       conf.Loop,
		intrinsics: conf.CameraParameters,
		logger:     logger,
	}
	fs.tickingSource = newTickingSource(clk, fps, fs.next, logger)
	return fs, nil
}

// Files returns the files in replay order.
func (fs *FileSource) Files() []string {
	return append([]string(nil), fs.files...)
}

func (fs *FileSource) next(seq uint64, now time.Time) (camera.Frame, bool) {
	if !fs.loop && seq > uint64(len(fs.files)) {
		return camera.Frame{}, false
	}
	file := fs.files[int(seq-1)%len(fs.files)]
	//nolint:gosec
	data, err := os.ReadFile(file)
	if err != nil {
		// an empty frame fails conversion downstream and is skipped there.
		fs.logger.Warnw("cannot read image file", "file", file, "error", err)
	}
	return camera.Frame{
		Data:       data,
		Format:     rimage.PixelFormatEncoded,
		Intrinsics: fs.intrinsics,
		CapturedAt: now,
		Seq:        seq,
	}, true
}
