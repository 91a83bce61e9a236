package screenctl

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/tvremote/connectivity"
	"github.com/hazyhaar/tvremote/kit"
)

// RegisterConnectivity registers screen control handlers on a connectivity Router.
//
// Registered services:
//
//	screen_change_channel   switch to a guide channel (synchronous)
//	screen_navigate_video   queue a video-site navigation task
//	screen_captions         caption action on the video site
//	screen_page_health      active responsiveness probe with recovery
//	screen_status           connectivity, current URL and last target
//	screen_task             background task status
func (c *Controller) RegisterConnectivity(router *connectivity.Router) {
	router.RegisterLocal("screen_change_channel", c.localHandler(func(ctx context.Context, req any) (any, error) {
		r := req.(*changeChannelRequest)
		return c.ChangeTarget(ctx, r.ChannelID, r.URL)
	}, decodePayload[changeChannelRequest]))

	router.RegisterLocal("screen_navigate_video", c.localHandler(func(ctx context.Context, req any) (any, error) {
		return c.NavigateVideo(ctx, req.(*navigateVideoRequest).URL)
	}, decodePayload[navigateVideoRequest]))

	router.RegisterLocal("screen_captions", c.localHandler(func(ctx context.Context, req any) (any, error) {
		return c.Captions(ctx, req.(*captionsRequest).Action)
	}, decodePayload[captionsRequest]))

	router.RegisterLocal("screen_page_health", c.localHandler(func(ctx context.Context, _ any) (any, error) {
		return c.PageHealth(ctx), nil
	}, decodePayload[struct{}]))

	router.RegisterLocal("screen_status", c.localHandler(func(context.Context, any) (any, error) {
		return map[string]any{"health": c.Health(), "current": c.Current()}, nil
	}, decodePayload[struct{}]))

	router.RegisterLocal("screen_task", c.localHandler(func(_ context.Context, req any) (any, error) {
		return c.Task(req.(*taskRequest).ID)
	}, decodePayload[taskRequest]))
}

type taskRequest struct {
	ID string `json:"id"`
}

// localHandler adapts an endpoint to the router's byte-level handler.
// Panics in the endpoint come back to the caller as *connectivity.ErrPanic.
func (c *Controller) localHandler(ep kit.Endpoint, decode func([]byte) (any, error)) connectivity.Handler {
	ep = kit.Chain(kit.WithTransportTag("connectivity"))(ep)
	return connectivity.Recovery(c.log)(func(ctx context.Context, payload []byte) ([]byte, error) {
		req, err := decode(payload)
		if err != nil {
			return nil, err
		}
		resp, err := ep(ctx, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	})
}

// decodePayload unmarshals payload into a new T. An empty payload is the
// zero value.
func decodePayload[T any](payload []byte) (any, error) {
	var v T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, fmt.Errorf("%w: decode: %w", ErrInvalidInput, err)
		}
	}
	return &v, nil
}
