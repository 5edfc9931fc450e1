package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/manager"
)

// Client talks to a skill manager server.
type Client struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the client used for plain requests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		dialer:  websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Command sends cmd. A command the manager rejected is returned as an
// error along with its response.
func (c *Client) Command(ctx context.Context, cmd manager.Command) (manager.Response, error) {
	var res manager.Response
	if err := c.do(ctx, http.MethodPost, "/command", cmd, &res); err != nil {
		return res, err
	}
	if !res.OK {
		return res, fmt.Errorf("%s rejected: %s", cmd.Action, res.Error)
	}
	return res, nil
}

// Execute creates a task from skills and starts it. It returns the task id.
func (c *Client) Execute(ctx context.Context, skills ...domain.SkillSpec) (int, error) {
	res, err := c.Command(ctx, manager.NewCommand(manager.ActionStart, skills...))
	return res.ExecutionID, err
}

// TickOnce ticks task id once. With manager.AllTasks and skills it creates
// a task and ticks it once.
func (c *Client) TickOnce(ctx context.Context, id int, skills ...domain.SkillSpec) (int, error) {
	res, err := c.Command(ctx, manager.Command{Action: manager.ActionTickOnce, ExecutionID: id, Skills: skills})
	return res.ExecutionID, err
}

// Preempt stops task id, or every task with manager.AllTasks.
func (c *Client) Preempt(ctx context.Context, id int) error {
	_, err := c.Command(ctx, manager.Command{Action: manager.ActionPreempt, ExecutionID: id})
	return err
}

// Pause pauses task id, or every task with manager.AllTasks.
func (c *Client) Pause(ctx context.Context, id int) error {
	_, err := c.Command(ctx, manager.Command{Action: manager.ActionPause, ExecutionID: id})
	return err
}

// Skills lists the skills offered by the agent.
func (c *Client) Skills(ctx context.Context) (SkillsResponse, error) {
	var res SkillsResponse
	err := c.do(ctx, http.MethodGet, "/skills", nil, &res)
	return res, err
}

// ReloadSkills asks the agent to read its skill library again.
func (c *Client) ReloadSkills(ctx context.Context) (SkillsResponse, error) {
	var res SkillsResponse
	err := c.do(ctx, http.MethodPost, "/skills/reload", nil, &res)
	return res, err
}

// Tasks lists the registered tasks.
func (c *Client) Tasks(ctx context.Context) ([]int, error) {
	var res TasksResponse
	err := c.do(ctx, http.MethodGet, "/tasks", nil, &res)
	return res.Tasks, err
}

// Progress returns the last progress event of task id.
func (c *Client) Progress(ctx context.Context, id int) (domain.ProgressEvent, error) {
	var event domain.ProgressEvent
	err := c.do(ctx, http.MethodGet, "/tasks/"+strconv.Itoa(id), nil, &event)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return event, fmt.Errorf("%w: %d", domain.ErrTaskNotFound, id)
	}
	return event, err
}

// SetDebug toggles params in progress snapshots.
func (c *Client) SetDebug(ctx context.Context, on bool) error {
	return c.do(ctx, http.MethodPost, "/debug", DebugRequest{Enabled: on}, nil)
}

// TickRate returns the tick rate measured by the agent.
func (c *Client) TickRate(ctx context.Context) (float64, error) {
	var res TickRateResponse
	err := c.do(ctx, http.MethodGet, "/tick_rate", nil, &res)
	return res.Hz, err
}

// Watch opens the websocket monitor and streams progress events until
// ctx is done or the connection drops.
func (c *Client) Watch(ctx context.Context) (<-chan domain.ProgressEvent, error) {
	u, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("open websocket: %w", err)
	}

	out := make(chan domain.ProgressEvent, 32)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type != TypeProgress || msg.Event == nil {
				continue
			}
			select {
			case out <- *msg.Event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Wait blocks until every task in ids has finished and returns their
// final progress events.
func (c *Client) Wait(ctx context.Context, ids ...int) (map[int]domain.ProgressEvent, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := c.Watch(ctx)
	if err != nil {
		return nil, err
	}

	pending := make(map[int]bool, len(ids))
	done := make(map[int]domain.ProgressEvent, len(ids))
	for _, id := range ids {
		pending[id] = true
	}
	// Tasks that finished before the monitor connected.
	for _, id := range ids {
		event, err := c.Progress(ctx, id)
		if err == nil && event.Done() {
			done[id] = event
			delete(pending, id)
		}
	}

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return done, ctx.Err()
		case event, ok := <-events:
			if !ok {
				return done, errors.New("monitor connection closed")
			}
			if pending[event.TaskID] && event.Done() {
				done[event.TaskID] = event
				delete(pending, event.TaskID)
			}
		}
	}
	return done, nil
}
