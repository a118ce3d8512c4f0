package overlay

import (
	"context"
	"sync"

	"go.viam.com/facebox/display"
	"go.viam.com/facebox/logging"
	"go.viam.com/facebox/vision/facedetection"
)

// State is what the overlay currently shows. The zero State is hidden.
type State struct {
	Shown bool
	Rect  display.Rect
}

// Hidden is the state with no box on screen.
var Hidden = State{}

// A Controller applies detection results to the overlay box. Every surface call happens on the
// display lane, and bounds are read there at the moment the result is applied.
type Controller struct {
	lane    *display.Lane
	surface display.Surface
	logger  logging.Logger

	mu    sync.Mutex
	state State
}

// NewController returns a controller for surface and hides the box.
func NewController(ctx context.Context, lane *display.Lane, surface display.Surface, logger logging.Logger) (*Controller, error) {
	c := &Controller{lane: lane, surface: surface, logger: logger}
	if err := lane.Post(ctx, c.surface.HideBox); err != nil {
		return nil, err
	}
	return c, nil
}

// Apply queues res onto the display lane. When its turn comes, a false guard discards it;
// otherwise the box is hidden for an empty or failed result and shown over the primary face
// for the rest. Apply waits for room on the lane but not for the result to be applied.
func (c *Controller) Apply(ctx context.Context, res facedetection.Result, guard func() bool) error {
	return c.lane.Post(ctx, func() {
		if guard != nil && !guard() {
			c.logger.Debugw("discarding stale result", "seq", res.Seq)
			return
		}
		primary, ok := res.Primary()
		if !ok {
			c.surface.HideBox()
			c.setState(Hidden)
			return
		}
		rect := MapToDisplay(primary.BoundingBox, c.surface.CurrentBounds())
		c.surface.ShowBox(rect)
		c.setState(State{Shown: true, Rect: rect})
	})
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// State returns a snapshot of the overlay state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
