package screenctl

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hazyhaar/tvremote/connectivity"
	"github.com/hazyhaar/tvremote/screenctl/internal/browser/browsertest"
)

func TestRegisterConnectivity(t *testing.T) {
	c := newTestController(t, nil, &browsertest.Driver{Setup: new(player).setup})
	r := connectivity.New(connectivity.WithLogger(quietLogger()))
	t.Cleanup(func() { r.Close() })
	c.RegisterConnectivity(r)
	ctx := context.Background()

	out, err := r.Call(ctx, "screen_change_channel", []byte(`{"channelId":"abc123"}`))
	if err != nil {
		t.Fatalf("change channel: %v", err)
	}
	var res ChangeResult
	if err := json.Unmarshal(out, &res); err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.ChannelID != "abc123" {
		t.Fatalf("change channel: %+v", res)
	}

	out, err = r.Call(ctx, "screen_page_health", nil)
	if err != nil {
		t.Fatal(err)
	}
	var ph PageHealth
	if err := json.Unmarshal(out, &ph); err != nil {
		t.Fatal(err)
	}
	if !ph.Healthy || ph.ChannelID != "abc123" {
		t.Fatalf("page health: %+v", ph)
	}

	out, err = r.Call(ctx, "screen_navigate_video", []byte(`{"url":"https://youtu.be/abc"}`))
	if err != nil {
		t.Fatal(err)
	}
	var task Task
	if err := json.Unmarshal(out, &task); err != nil {
		t.Fatal(err)
	}
	waitTask(t, c, task.ID)

	out, err = r.Call(ctx, "screen_task", []byte(`{"id":"`+task.ID+`"}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(out, &task); err != nil {
		t.Fatal(err)
	}
	if task.Status != TaskSucceeded {
		t.Fatalf("task: %+v", task)
	}
}

func TestRegisterConnectivity_Errors(t *testing.T) {
	c := newTestController(t, nil, &browsertest.Driver{})
	r := connectivity.New(connectivity.WithLogger(quietLogger()))
	t.Cleanup(func() { r.Close() })
	c.RegisterConnectivity(r)

	_, err := r.Call(context.Background(), "screen_captions", []byte(`{"action":"on"}`))
	if !errors.Is(err, ErrNotOnVideoSite) {
		t.Fatalf("captions: got %v, want ErrNotOnVideoSite", err)
	}
	_, err = r.Call(context.Background(), "screen_change_channel", []byte(`not json`))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad payload: got %v, want ErrInvalidInput", err)
	}
}
