package mcp

import (
	"bytes"
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yuin/goldmark"

	"github.com/dgower/olbridge/internal/bridge"
	"github.com/dgower/olbridge/internal/session"
)

// ListEmailsArgs are the arguments for the list_emails tool.
type ListEmailsArgs struct {
	// Limit is the maximum number of emails to return.
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of emails to return,default=10"`

	// Folder is the folder to list. Defaults to the inbox.
	Folder string `json:"folder,omitempty" jsonschema:"Folder name (Inbox, Sent Items, or a custom folder),default=Inbox"`
}

// ListEmailsResult is the result of the list_emails tool.
type ListEmailsResult struct {
	Emails []bridge.EmailRecord `json:"emails"`
}

func (s *Server) handleListEmails(ctx context.Context,
	req *mcp.CallToolRequest,
	args ListEmailsArgs) (*mcp.CallToolResult, ListEmailsResult, error) {

	emails, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) ([]bridge.EmailRecord, error) {
			return b.ListEmails(args.Limit, args.Folder)
		},
	)
	if err != nil {
		return nil, ListEmailsResult{}, wrapErr(err)
	}

	return nil, ListEmailsResult{Emails: emails}, nil
}

// GetEmailArgs are the arguments for the get_email tool.
type GetEmailArgs struct {
	EntryID string `json:"entry_id" jsonschema:"Entry ID of the email"`
}

func (s *Server) handleGetEmail(ctx context.Context,
	req *mcp.CallToolRequest,
	args GetEmailArgs) (*mcp.CallToolResult, bridge.EmailRecord, error) {

	email, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.EmailRecord, error) {
			return b.GetEmail(args.EntryID)
		},
	)
	if err != nil {
		return nil, bridge.EmailRecord{}, wrapErr(err)
	}

	return nil, email, nil
}

// SearchEmailsArgs are the arguments for the search_emails tool.
type SearchEmailsArgs struct {
	Subject        string `json:"subject,omitempty" jsonschema:"Substring to match in the subject"`
	Sender         string `json:"sender,omitempty" jsonschema:"Substring to match in the sender name or address"`
	Body           string `json:"body,omitempty" jsonschema:"Substring to match in the body"`
	Unread         *bool  `json:"unread,omitempty" jsonschema:"Filter by read state"`
	HasAttachments *bool  `json:"has_attachments,omitempty" jsonschema:"Filter by attachment presence"`
	Folder         string `json:"folder,omitempty" jsonschema:"Folder to search,default=Inbox"`
	Limit          int    `json:"limit,omitempty" jsonschema:"Maximum number of results,default=10"`
}

// SearchEmailsResult is the result of the search_emails tool.
type SearchEmailsResult struct {
	Emails []bridge.EmailRecord `json:"emails"`
}

func (s *Server) handleSearchEmails(ctx context.Context,
	req *mcp.CallToolRequest,
	args SearchEmailsArgs) (*mcp.CallToolResult, SearchEmailsResult, error) {

	q := bridge.SearchQuery{
		Subject:        args.Subject,
		Sender:         args.Sender,
		Body:           args.Body,
		Unread:         args.Unread,
		HasAttachments: args.HasAttachments,
		Folder:         args.Folder,
		Limit:          args.Limit,
	}

	emails, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) ([]bridge.EmailRecord, error) {
			return b.SearchEmails(q)
		},
	)
	if err != nil {
		return nil, SearchEmailsResult{}, wrapErr(err)
	}

	return nil, SearchEmailsResult{Emails: emails}, nil
}

// SendEmailArgs are the arguments for the send_email tool.
type SendEmailArgs struct {
	To          []string `json:"to" jsonschema:"Recipient addresses"`
	CC          []string `json:"cc,omitempty" jsonschema:"CC addresses"`
	BCC         []string `json:"bcc,omitempty" jsonschema:"BCC addresses"`
	Subject     string   `json:"subject" jsonschema:"Subject line"`
	Body        string   `json:"body" jsonschema:"Body in markdown format"`
	Attachments []string `json:"attachments,omitempty" jsonschema:"Local file paths to attach"`
	Draft       bool     `json:"draft,omitempty" jsonschema:"Save as draft instead of sending"`
}

func (s *Server) handleSendEmail(ctx context.Context,
	req *mcp.CallToolRequest,
	args SendEmailArgs) (*mcp.CallToolResult, bridge.OperationResult,
	error) {

	sendReq := bridge.SendEmailRequest{
		To:          args.To,
		CC:          args.CC,
		BCC:         args.BCC,
		Subject:     args.Subject,
		Body:        args.Body,
		HTMLBody:    renderMarkdown(args.Body),
		Attachments: args.Attachments,
		Draft:       args.Draft,
	}

	res, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.OperationResult, error) {
			return b.SendEmail(sendReq)
		},
	)
	if err != nil {
		return nil, bridge.OperationResult{}, wrapErr(err)
	}

	return nil, res, nil
}

// renderMarkdown converts a markdown body to HTML. A body that fails to
// render is sent as plain text only.
func renderMarkdown(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(body), &buf); err != nil {
		log.Warnf("Rendering markdown body: %v", err)
		return ""
	}

	return buf.String()
}

// ReplyEmailArgs are the arguments for the reply_email tool.
type ReplyEmailArgs struct {
	EntryID  string `json:"entry_id" jsonschema:"Entry ID of the email to reply to"`
	Body     string `json:"body" jsonschema:"Reply body"`
	ReplyAll bool   `json:"reply_all,omitempty" jsonschema:"Reply to all recipients"`
	Draft    bool   `json:"draft,omitempty" jsonschema:"Save as draft instead of sending"`
}

func (s *Server) handleReplyEmail(ctx context.Context,
	req *mcp.CallToolRequest,
	args ReplyEmailArgs) (*mcp.CallToolResult, bridge.OperationResult,
	error) {

	res, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.OperationResult, error) {
			return b.ReplyEmail(
				args.EntryID, args.Body, args.ReplyAll, args.Draft,
			)
		},
	)
	if err != nil {
		return nil, bridge.OperationResult{}, wrapErr(err)
	}

	return nil, res, nil
}

// ForwardEmailArgs are the arguments for the forward_email tool.
type ForwardEmailArgs struct {
	EntryID string   `json:"entry_id" jsonschema:"Entry ID of the email to forward"`
	To      []string `json:"to" jsonschema:"Recipient addresses"`
	Comment string   `json:"comment,omitempty" jsonschema:"Comment above the forwarded content"`
	Draft   bool     `json:"draft,omitempty" jsonschema:"Save as draft instead of sending"`
}

func (s *Server) handleForwardEmail(ctx context.Context,
	req *mcp.CallToolRequest,
	args ForwardEmailArgs) (*mcp.CallToolResult, bridge.OperationResult,
	error) {

	res, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.OperationResult, error) {
			return b.ForwardEmail(
				args.EntryID, args.To, args.Comment, args.Draft,
			)
		},
	)
	if err != nil {
		return nil, bridge.OperationResult{}, wrapErr(err)
	}

	return nil, res, nil
}

// MarkEmailArgs are the arguments for the mark_email tool.
type MarkEmailArgs struct {
	EntryID string `json:"entry_id" jsonschema:"Entry ID of the email"`
	Unread  bool   `json:"unread,omitempty" jsonschema:"Mark as unread instead of read"`
}

func (s *Server) handleMarkEmail(ctx context.Context,
	req *mcp.CallToolRequest,
	args MarkEmailArgs) (*mcp.CallToolResult, bridge.OperationResult,
	error) {

	res, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.OperationResult, error) {
			return b.MarkEmail(args.EntryID, args.Unread)
		},
	)
	if err != nil {
		return nil, bridge.OperationResult{}, wrapErr(err)
	}

	return nil, res, nil
}

// MoveEmailArgs are the arguments for the move_email tool.
type MoveEmailArgs struct {
	EntryID string `json:"entry_id" jsonschema:"Entry ID of the email"`
	Folder  string `json:"folder" jsonschema:"Destination folder name"`
}

func (s *Server) handleMoveEmail(ctx context.Context,
	req *mcp.CallToolRequest,
	args MoveEmailArgs) (*mcp.CallToolResult, bridge.OperationResult,
	error) {

	res, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.OperationResult, error) {
			return b.MoveEmail(args.EntryID, args.Folder)
		},
	)
	if err != nil {
		return nil, bridge.OperationResult{}, wrapErr(err)
	}

	return nil, res, nil
}

// DeleteEmailArgs are the arguments for the delete_email tool.
type DeleteEmailArgs struct {
	EntryID string `json:"entry_id" jsonschema:"Entry ID of the email"`
}

func (s *Server) handleDeleteEmail(ctx context.Context,
	req *mcp.CallToolRequest,
	args DeleteEmailArgs) (*mcp.CallToolResult, bridge.OperationResult,
	error) {

	res, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.OperationResult, error) {
			return b.DeleteEmail(args.EntryID)
		},
	)
	if err != nil {
		return nil, bridge.OperationResult{}, wrapErr(err)
	}

	return nil, res, nil
}

// DownloadAttachmentsArgs are the arguments for the download_attachments
// tool.
type DownloadAttachmentsArgs struct {
	EntryID string `json:"entry_id" jsonschema:"Entry ID of the email"`
	Dir     string `json:"dir" jsonschema:"Local directory to save into"`
}

// DownloadAttachmentsResult is the result of the download_attachments
// tool.
type DownloadAttachmentsResult struct {
	Saved []bridge.SavedAttachment `json:"saved"`
}

func (s *Server) handleDownloadAttachments(ctx context.Context,
	req *mcp.CallToolRequest,
	args DownloadAttachmentsArgs) (*mcp.CallToolResult,
	DownloadAttachmentsResult, error) {

	saved, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) ([]bridge.SavedAttachment, error) {
			return b.DownloadAttachments(args.EntryID, args.Dir)
		},
	)
	if err != nil {
		return nil, DownloadAttachmentsResult{}, wrapErr(err)
	}

	return nil, DownloadAttachmentsResult{Saved: saved}, nil
}

// ListEventsArgs are the arguments for the list_events tool.
type ListEventsArgs struct {
	Days int `json:"days,omitempty" jsonschema:"How many days ahead to list,default=7"`
}

// ListEventsResult is the result of the list_events tool.
type ListEventsResult struct {
	Events []bridge.EventRecord `json:"events"`
}

func (s *Server) handleListEvents(ctx context.Context,
	req *mcp.CallToolRequest,
	args ListEventsArgs) (*mcp.CallToolResult, ListEventsResult, error) {

	events, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) ([]bridge.EventRecord, error) {
			return b.ListEvents(args.Days)
		},
	)
	if err != nil {
		return nil, ListEventsResult{}, wrapErr(err)
	}

	return nil, ListEventsResult{Events: events}, nil
}

// GetEventArgs are the arguments for the get_event tool.
type GetEventArgs struct {
	EntryID string `json:"entry_id" jsonschema:"Entry ID of the event"`
}

func (s *Server) handleGetEvent(ctx context.Context,
	req *mcp.CallToolRequest,
	args GetEventArgs) (*mcp.CallToolResult, bridge.EventRecord, error) {

	event, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.EventRecord, error) {
			return b.GetEvent(args.EntryID)
		},
	)
	if err != nil {
		return nil, bridge.EventRecord{}, wrapErr(err)
	}

	return nil, event, nil
}

// CreateEventArgs are the arguments for the create_event tool.
type CreateEventArgs struct {
	Subject           string   `json:"subject" jsonschema:"Event subject"`
	Start             string   `json:"start" jsonschema:"Start time, YYYY-MM-DD HH:MM"`
	End               string   `json:"end,omitempty" jsonschema:"End time, YYYY-MM-DD HH:MM"`
	DurationMinutes   int      `json:"duration_minutes,omitempty" jsonschema:"Duration in minutes when no end time is given,default=30"`
	Location          string   `json:"location,omitempty" jsonschema:"Location"`
	Body              string   `json:"body,omitempty" jsonschema:"Description"`
	AllDay            bool     `json:"all_day,omitempty" jsonschema:"All-day event"`
	RequiredAttendees []string `json:"required_attendees,omitempty" jsonschema:"Required attendee addresses"`
	OptionalAttendees []string `json:"optional_attendees,omitempty" jsonschema:"Optional attendee addresses"`
	SendInvitations   bool     `json:"send_invitations,omitempty" jsonschema:"Send meeting invitations to attendees"`
}

func (s *Server) handleCreateEvent(ctx context.Context,
	req *mcp.CallToolRequest,
	args CreateEventArgs) (*mcp.CallToolResult, bridge.OperationResult,
	error) {

	createReq := bridge.CreateEventRequest{
		Subject:           args.Subject,
		Start:             args.Start,
		End:               args.End,
		DurationMinutes:   args.DurationMinutes,
		Location:          args.Location,
		Body:              args.Body,
		AllDay:            args.AllDay,
		RequiredAttendees: args.RequiredAttendees,
		OptionalAttendees: args.OptionalAttendees,
		SendInvitations:   args.SendInvitations,
	}

	res, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.OperationResult, error) {
			return b.CreateEvent(createReq)
		},
	)
	if err != nil {
		return nil, bridge.OperationResult{}, wrapErr(err)
	}

	return nil, res, nil
}

// UpdateEventArgs are the arguments for the update_event tool. Omitted
// fields are left untouched.
type UpdateEventArgs struct {
	EntryID  string  `json:"entry_id" jsonschema:"Entry ID of the event"`
	Subject  *string `json:"subject,omitempty" jsonschema:"New subject"`
	Start    *string `json:"start,omitempty" jsonschema:"New start time, YYYY-MM-DD HH:MM"`
	End      *string `json:"end,omitempty" jsonschema:"New end time, YYYY-MM-DD HH:MM"`
	Location *string `json:"location,omitempty" jsonschema:"New location"`
	Body     *string `json:"body,omitempty" jsonschema:"New description"`
}

func (s *Server) handleUpdateEvent(ctx context.Context,
	req *mcp.CallToolRequest,
	args UpdateEventArgs) (*mcp.CallToolResult, bridge.OperationResult,
	error) {

	updateReq := bridge.UpdateEventRequest{
		Subject:  args.Subject,
		Start:    args.Start,
		End:      args.End,
		Location: args.Location,
		Body:     args.Body,
	}

	res, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.OperationResult, error) {
			return b.UpdateEvent(args.EntryID, updateReq)
		},
	)
	if err != nil {
		return nil, bridge.OperationResult{}, wrapErr(err)
	}

	return nil, res, nil
}

// DeleteEventArgs are the arguments for the delete_event tool.
type DeleteEventArgs struct {
	EntryID string `json:"entry_id" jsonschema:"Entry ID of the event"`
}

func (s *Server) handleDeleteEvent(ctx context.Context,
	req *mcp.CallToolRequest,
	args DeleteEventArgs) (*mcp.CallToolResult, bridge.OperationResult,
	error) {

	res, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.OperationResult, error) {
			return b.DeleteEvent(args.EntryID)
		},
	)
	if err != nil {
		return nil, bridge.OperationResult{}, wrapErr(err)
	}

	return nil, res, nil
}

// RespondEventArgs are the arguments for the respond_event tool.
type RespondEventArgs struct {
	EntryID  string `json:"entry_id" jsonschema:"Entry ID of the meeting request"`
	Response string `json:"response" jsonschema:"accept, decline or tentative"`
}

func (s *Server) handleRespondEvent(ctx context.Context,
	req *mcp.CallToolRequest,
	args RespondEventArgs) (*mcp.CallToolResult, bridge.OperationResult,
	error) {

	res, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.OperationResult, error) {
			return b.RespondEvent(args.EntryID, args.Response)
		},
	)
	if err != nil {
		return nil, bridge.OperationResult{}, wrapErr(err)
	}

	return nil, res, nil
}

// FreeBusyArgs are the arguments for the get_free_busy tool.
type FreeBusyArgs struct {
	Emails []string `json:"emails" jsonschema:"Addresses to look up"`
	Days   int      `json:"days,omitempty" jsonschema:"How many days ahead,default=1"`
}

// FreeBusyResult is the result of the get_free_busy tool.
type FreeBusyResult struct {
	Availability []bridge.FreeBusyRecord `json:"availability"`
}

func (s *Server) handleFreeBusy(ctx context.Context,
	req *mcp.CallToolRequest,
	args FreeBusyArgs) (*mcp.CallToolResult, FreeBusyResult, error) {

	records, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) ([]bridge.FreeBusyRecord, error) {
			return b.FreeBusy(args.Emails, args.Days)
		},
	)
	if err != nil {
		return nil, FreeBusyResult{}, wrapErr(err)
	}

	return nil, FreeBusyResult{Availability: records}, nil
}

// ListTasksArgs are the arguments for the list_tasks tool.
type ListTasksArgs struct {
	IncludeCompleted bool `json:"include_completed,omitempty" jsonschema:"Include completed tasks"`
	Limit            int  `json:"limit,omitempty" jsonschema:"Maximum number of tasks to return,default=10"`
}

// ListTasksResult is the result of the list_tasks tool.
type ListTasksResult struct {
	Tasks []bridge.TaskRecord `json:"tasks"`
}

func (s *Server) handleListTasks(ctx context.Context,
	req *mcp.CallToolRequest,
	args ListTasksArgs) (*mcp.CallToolResult, ListTasksResult, error) {

	tasks, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) ([]bridge.TaskRecord, error) {
			return b.ListTasks(args.IncludeCompleted, args.Limit)
		},
	)
	if err != nil {
		return nil, ListTasksResult{}, wrapErr(err)
	}

	return nil, ListTasksResult{Tasks: tasks}, nil
}

// GetTaskArgs are the arguments for the get_task tool.
type GetTaskArgs struct {
	EntryID string `json:"entry_id" jsonschema:"Entry ID of the task"`
}

func (s *Server) handleGetTask(ctx context.Context,
	req *mcp.CallToolRequest,
	args GetTaskArgs) (*mcp.CallToolResult, bridge.TaskRecord, error) {

	task, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.TaskRecord, error) {
			return b.GetTask(args.EntryID)
		},
	)
	if err != nil {
		return nil, bridge.TaskRecord{}, wrapErr(err)
	}

	return nil, task, nil
}

// CreateTaskArgs are the arguments for the create_task tool.
type CreateTaskArgs struct {
	Subject  string `json:"subject" jsonschema:"Task subject"`
	Body     string `json:"body,omitempty" jsonschema:"Task description"`
	DueDate  string `json:"due_date,omitempty" jsonschema:"Due date, YYYY-MM-DD"`
	Priority string `json:"priority,omitempty" jsonschema:"low, normal or high,default=normal"`
}

func (s *Server) handleCreateTask(ctx context.Context,
	req *mcp.CallToolRequest,
	args CreateTaskArgs) (*mcp.CallToolResult, bridge.OperationResult,
	error) {

	createReq := bridge.CreateTaskRequest{
		Subject:  args.Subject,
		Body:     args.Body,
		DueDate:  args.DueDate,
		Priority: args.Priority,
	}

	res, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.OperationResult, error) {
			return b.CreateTask(createReq)
		},
	)
	if err != nil {
		return nil, bridge.OperationResult{}, wrapErr(err)
	}

	return nil, res, nil
}

// UpdateTaskArgs are the arguments for the update_task tool. Omitted
// fields are left untouched.
type UpdateTaskArgs struct {
	EntryID         string  `json:"entry_id" jsonschema:"Entry ID of the task"`
	Subject         *string `json:"subject,omitempty" jsonschema:"New subject"`
	Body            *string `json:"body,omitempty" jsonschema:"New description"`
	DueDate         *string `json:"due_date,omitempty" jsonschema:"New due date, YYYY-MM-DD"`
	Priority        *string `json:"priority,omitempty" jsonschema:"low, normal or high"`
	Status          *string `json:"status,omitempty" jsonschema:"not_started, in_progress, complete, waiting or deferred"`
	PercentComplete *int    `json:"percent_complete,omitempty" jsonschema:"Completion percentage, 0-100"`
}

func (s *Server) handleUpdateTask(ctx context.Context,
	req *mcp.CallToolRequest,
	args UpdateTaskArgs) (*mcp.CallToolResult, bridge.OperationResult,
	error) {

	updateReq := bridge.UpdateTaskRequest{
		Subject:         args.Subject,
		Body:            args.Body,
		DueDate:         args.DueDate,
		Priority:        args.Priority,
		Status:          args.Status,
		PercentComplete: args.PercentComplete,
	}

	res, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.OperationResult, error) {
			return b.UpdateTask(args.EntryID, updateReq)
		},
	)
	if err != nil {
		return nil, bridge.OperationResult{}, wrapErr(err)
	}

	return nil, res, nil
}

// CompleteTaskArgs are the arguments for the complete_task tool.
type CompleteTaskArgs struct {
	EntryID string `json:"entry_id" jsonschema:"Entry ID of the task"`
}

func (s *Server) handleCompleteTask(ctx context.Context,
	req *mcp.CallToolRequest,
	args CompleteTaskArgs) (*mcp.CallToolResult, bridge.OperationResult,
	error) {

	res, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.OperationResult, error) {
			return b.CompleteTask(args.EntryID)
		},
	)
	if err != nil {
		return nil, bridge.OperationResult{}, wrapErr(err)
	}

	return nil, res, nil
}

// DeleteTaskArgs are the arguments for the delete_task tool.
type DeleteTaskArgs struct {
	EntryID string `json:"entry_id" jsonschema:"Entry ID of the task"`
}

func (s *Server) handleDeleteTask(ctx context.Context,
	req *mcp.CallToolRequest,
	args DeleteTaskArgs) (*mcp.CallToolResult, bridge.OperationResult,
	error) {

	res, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) (bridge.OperationResult, error) {
			return b.DeleteTask(args.EntryID)
		},
	)
	if err != nil {
		return nil, bridge.OperationResult{}, wrapErr(err)
	}

	return nil, res, nil
}

// ListFoldersArgs are the arguments for the list_folders tool.
type ListFoldersArgs struct {
	Account string `json:"account,omitempty" jsonschema:"Restrict to one account's mailbox"`
}

// ListFoldersResult is the result of the list_folders tool.
type ListFoldersResult struct {
	Folders []bridge.FolderRecord `json:"folders"`
}

func (s *Server) handleListFolders(ctx context.Context,
	req *mcp.CallToolRequest,
	args ListFoldersArgs) (*mcp.CallToolResult, ListFoldersResult, error) {

	folders, err := session.Do(ctx, s.session,
		func(b *bridge.Bridge) ([]bridge.FolderRecord, error) {
			return b.ListFolders(args.Account)
		},
	)
	if err != nil {
		return nil, ListFoldersResult{}, wrapErr(err)
	}

	return nil, ListFoldersResult{Folders: folders}, nil
}
