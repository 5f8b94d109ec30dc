// Package mcp exposes the bridge's operations as a tool server speaking
// the Model Context Protocol over stdio. Every tool call is routed
// through the session manager, which serializes it onto the automation
// worker thread; the handlers here only translate arguments, route the
// call, and translate errors into the protocol's error strings.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dgower/olbridge/internal/bridge"
	"github.com/dgower/olbridge/internal/build"
	"github.com/dgower/olbridge/internal/session"
)

// Server wraps the MCP server with its session dependency.
type Server struct {
	server  *mcp.Server
	session *session.Manager
}

// NewServer creates an MCP server with all bridge tools and resources
// registered.
func NewServer(sess *session.Manager) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "olbridge",
		Version: build.Version(),
	}, nil)

	s := &Server{
		server:  mcpServer,
		session: sess,
	}

	s.registerTools()
	s.registerResources()

	return s
}

// Run starts the MCP server on the given transport and blocks until the
// context is cancelled or the transport closes.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	log.Infof("Tool server running")
	return s.server.Run(ctx, transport)
}

// wrapErr prefixes an error with its classification so protocol clients
// can dispatch on the failure kind without parsing prose.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", bridge.Classify(err), err)
}

// registerTools registers every bridge operation as a tool.
func (s *Server) registerTools() {
	// Email tools.
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "list_emails",
		Description: "List recent emails from a folder, newest " +
			"first. Returns summaries without bodies.",
	}, s.handleListEmails)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "get_email",
		Description: "Get the full content of one email by its " +
			"entry ID, including the body.",
	}, s.handleGetEmail)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "search_emails",
		Description: "Search a folder by subject, sender, body, " +
			"read state or attachment presence.",
	}, s.handleSearchEmails)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "send_email",
		Description: "Compose and send an email, or save it as a " +
			"draft. The body may be markdown; it is rendered to HTML.",
	}, s.handleSendEmail)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "reply_email",
		Description: "Reply to an email by entry ID, quoting the " +
			"original below the reply body.",
	}, s.handleReplyEmail)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "forward_email",
		Description: "Forward an email by entry ID to new recipients.",
	}, s.handleForwardEmail)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "mark_email",
		Description: "Mark an email as read or unread.",
	}, s.handleMarkEmail)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "move_email",
		Description: "Move an email to another folder.",
	}, s.handleMoveEmail)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "delete_email",
		Description: "Delete an email. It is moved to the deleted " +
			"items folder, not destroyed.",
	}, s.handleDeleteEmail)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "download_attachments",
		Description: "Save all attachments of an email into a local " +
			"directory.",
	}, s.handleDownloadAttachments)

	// Calendar tools.
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "list_events",
		Description: "List calendar events for the coming days, " +
			"including each occurrence of recurring series.",
	}, s.handleListEvents)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_event",
		Description: "Get the full detail of one calendar event.",
	}, s.handleGetEvent)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "create_event",
		Description: "Create a calendar event or meeting. With " +
			"attendees and send_invitations, invitations go out.",
	}, s.handleCreateEvent)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_event",
		Description: "Update fields of an existing calendar event.",
	}, s.handleUpdateEvent)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_event",
		Description: "Delete a calendar event.",
	}, s.handleDeleteEvent)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "respond_event",
		Description: "Accept, decline or tentatively accept a " +
			"received meeting request.",
	}, s.handleRespondEvent)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "get_free_busy",
		Description: "Get availability for one or more addresses. " +
			"Unresolvable addresses are reported, not failed.",
	}, s.handleFreeBusy)

	// Task tools.
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "list_tasks",
		Description: "List tasks, soonest due first. Completed tasks " +
			"are excluded unless requested.",
	}, s.handleListTasks)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_task",
		Description: "Get the full detail of one task.",
	}, s.handleGetTask)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_task",
		Description: "Create a task with optional due date and priority.",
	}, s.handleCreateTask)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_task",
		Description: "Update fields of an existing task.",
	}, s.handleUpdateTask)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "complete_task",
		Description: "Mark a task as complete.",
	}, s.handleCompleteTask)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_task",
		Description: "Delete a task.",
	}, s.handleDeleteTask)

	// Folder tools.
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "list_folders",
		Description: "List the full folder tree of every mounted " +
			"mailbox, with item counts.",
	}, s.handleListFolders)
}
