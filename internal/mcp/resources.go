package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dgower/olbridge/internal/bridge"
	"github.com/dgower/olbridge/internal/session"
)

// Resource URIs for the read-only snapshot views.
const (
	uriInboxRecent   = "olbridge://inbox/recent"
	uriCalendarToday = "olbridge://calendar/today"
	uriTasksActive   = "olbridge://tasks/active"
)

// registerResources registers the read-only snapshot resources: the
// recent inbox, today's calendar, and the active task list.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriInboxRecent,
		Name:        "Recent inbox",
		Description: "The ten newest inbox messages",
		MIMEType:    "application/json",
	}, s.readInboxRecent)

	s.server.AddResource(&mcp.Resource{
		URI:         uriCalendarToday,
		Name:        "Today's calendar",
		Description: "Every calendar occurrence for today",
		MIMEType:    "application/json",
	}, s.readCalendarToday)

	s.server.AddResource(&mcp.Resource{
		URI:         uriTasksActive,
		Name:        "Active tasks",
		Description: "Incomplete tasks, soonest due first",
		MIMEType:    "application/json",
	}, s.readTasksActive)
}

// jsonResource renders one value as a JSON resource read result.
func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func (s *Server) readInboxRecent(ctx context.Context,
	req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {

	emails, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) ([]bridge.EmailRecord, error) {
			return b.ListEmails(10, "")
		},
	)
	if err != nil {
		return nil, wrapErr(err)
	}

	return jsonResource(uriInboxRecent, emails)
}

func (s *Server) readCalendarToday(ctx context.Context,
	req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {

	events, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) ([]bridge.EventRecord, error) {
			return b.ListEvents(1)
		},
	)
	if err != nil {
		return nil, wrapErr(err)
	}

	return jsonResource(uriCalendarToday, events)
}

func (s *Server) readTasksActive(ctx context.Context,
	req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {

	tasks, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) ([]bridge.TaskRecord, error) {
			return b.ListTasks(false, 50)
		},
	)
	if err != nil {
		return nil, wrapErr(err)
	}

	return jsonResource(uriTasksActive, tasks)
}
