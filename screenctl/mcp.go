package screenctl

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/tvremote/kit"
)

// RegisterMCP registers the screen control tools on an MCP server.
func (c *Controller) RegisterMCP(srv *mcp.Server) {
	c.registerChangeChannelTool(srv)
	c.registerNavigateVideoTool(srv)
	c.registerCaptionsTool(srv)
	c.registerPageHealthTool(srv)
	c.registerStatusTool(srv)
	c.registerRestartTool(srv)
	c.registerTaskTool(srv)
	c.registerVideoInfoTool(srv)
	c.registerChannelsTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

type mcpChangeChannelRequest struct {
	ChannelID string `json:"channel_id"`
	URL       string `json:"url"`
}

func (c *Controller) registerChangeChannelTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "screen_change_channel",
		Description: "Switch the shared screen to a guide channel and wait until it plays fullscreen.",
		InputSchema: inputSchema(map[string]any{
			"channel_id": map[string]any{"type": "string", "description": "Guide channel ID"},
			"url":        map[string]any{"type": "string", "description": "Channel watch URL (built from channel_id when empty)"},
		}, nil),
	}
	kit.RegisterMCPTool(srv, tool, func(ctx context.Context, req any) (any, error) {
		r := req.(*mcpChangeChannelRequest)
		return c.ChangeTarget(ctx, r.ChannelID, r.URL)
	}, kit.DecodeArgs[mcpChangeChannelRequest])
}

type mcpNavigateVideoRequest struct {
	URL string `json:"url"`
}

func (c *Controller) registerNavigateVideoTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "screen_navigate_video",
		Description: "Play a video-site URL on the shared screen. Runs in the background; poll screen_task with the returned task ID.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Video URL on an allowlisted host"},
		}, []string{"url"}),
	}
	kit.RegisterMCPTool(srv, tool, func(ctx context.Context, req any) (any, error) {
		r := req.(*mcpNavigateVideoRequest)
		return c.NavigateVideo(ctx, r.URL)
	}, kit.DecodeArgs[mcpNavigateVideoRequest])
}

type mcpCaptionsRequest struct {
	Action string `json:"action"`
}

func (c *Controller) registerCaptionsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "screen_captions",
		Description: "Turn video-site captions on or off, toggle them, read their state or clear the session preference.",
		InputSchema: inputSchema(map[string]any{
			"action": map[string]any{"type": "string", "enum": []any{"on", "off", "toggle", "status", "reset"}},
		}, []string{"action"}),
	}
	kit.RegisterMCPTool(srv, tool, func(ctx context.Context, req any) (any, error) {
		return c.Captions(ctx, req.(*mcpCaptionsRequest).Action)
	}, kit.DecodeArgs[mcpCaptionsRequest])
}

type mcpEmptyRequest struct{}

func (c *Controller) registerPageHealthTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "screen_page_health",
		Description: "Probe page responsiveness; a frozen page gets the recovery sequence.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	kit.RegisterMCPTool(srv, tool, func(ctx context.Context, _ any) (any, error) {
		return c.PageHealth(ctx), nil
	}, kit.DecodeArgs[mcpEmptyRequest])
}

func (c *Controller) registerStatusTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "screen_status",
		Description: "Browser connectivity, current URL and last target.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	kit.RegisterMCPTool(srv, tool, func(context.Context, any) (any, error) {
		return map[string]any{"health": c.Health(), "current": c.Current()}, nil
	}, kit.DecodeArgs[mcpEmptyRequest])
}

func (c *Controller) registerRestartTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "screen_restart_browser",
		Description: "Tear the browser session down and start it again. Clears the caption preference.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	kit.RegisterMCPTool(srv, tool, func(ctx context.Context, _ any) (any, error) {
		return c.RestartSession(ctx)
	}, kit.DecodeArgs[mcpEmptyRequest])
}

type mcpTaskRequest struct {
	ID string `json:"id"`
}

func (c *Controller) registerTaskTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "screen_task",
		Description: "Status of a background screen task.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Task ID"},
		}, []string{"id"}),
	}
	kit.RegisterMCPTool(srv, tool, func(_ context.Context, req any) (any, error) {
		return c.Task(req.(*mcpTaskRequest).ID)
	}, kit.DecodeArgs[mcpTaskRequest])
}

func (c *Controller) registerVideoInfoTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "screen_video_info",
		Description: "Title, channel, duration and description of the video on screen.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	kit.RegisterMCPTool(srv, tool, func(ctx context.Context, _ any) (any, error) {
		return c.VideoInfo(ctx)
	}, kit.DecodeArgs[mcpEmptyRequest])
}

type mcpChannelsRequest struct {
	ChannelID string `json:"channel_id,omitempty"`
}

func (c *Controller) registerChannelsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "screen_channels",
		Description: "Guide channel list, or the now-playing program of one channel.",
		InputSchema: inputSchema(map[string]any{
			"channel_id": map[string]any{"type": "string", "description": "Return now-playing for this channel"},
		}, nil),
	}
	kit.RegisterMCPTool(srv, tool, func(ctx context.Context, req any) (any, error) {
		var (
			data json.RawMessage
			err  error
		)
		if id := req.(*mcpChannelsRequest).ChannelID; id != "" {
			data, err = c.NowPlaying(ctx, id)
		} else {
			data, err = c.Channels(ctx)
		}
		return data, err
	}, kit.DecodeArgs[mcpChannelsRequest])
}
