package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgower/olbridge/internal/bridge"
	"github.com/dgower/olbridge/internal/config"
	"github.com/dgower/olbridge/internal/mapi"
	"github.com/dgower/olbridge/internal/outlook"
	"github.com/dgower/olbridge/internal/session"
	"github.com/dgower/olbridge/internal/simstore"
)

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if backendName != "" {
		cfg.Backend = backendName
	}
	if accountName != "" {
		cfg.Account = accountName
	}
	if simPath != "" {
		cfg.Sim.Path = simPath
	}
	if seedDemo {
		cfg.Sim.SeedDemo = true
	}
	if timeoutSec > 0 {
		cfg.CallTimeoutSec = timeoutSec
	}

	if cfg.Backend != config.BackendOutlook &&
		cfg.Backend != config.BackendSim {

		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	return cfg, nil
}

// backendConnector builds the store connector for the configured backend.
// The connector runs on the session's locked worker thread.
func backendConnector(cfg *config.Config) session.Connector {
	if cfg.Backend == config.BackendOutlook {
		return outlook.Connect
	}

	simCfg := simstore.Config{
		Path:      cfg.Sim.Path,
		Account:   cfg.Account,
		UserEmail: cfg.Sim.UserEmail,
		UserName:  cfg.Sim.UserName,
	}
	seed := cfg.Sim.SeedDemo
	return func() (mapi.Store, error) {
		store, err := simstore.New(simCfg)
		if err != nil {
			return nil, err
		}
		if seed {
			if err := store.SeedDemo(); err != nil {
				store.Release()
				return nil, err
			}
		}
		return store, nil
	}
}

// runOp starts a session, runs the operation on its worker thread, and
// prints the result in the requested format. Every subcommand funnels
// through here so the session lifecycle is identical across commands.
func runOp(f func(*bridge.Bridge) (any, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sess := session.NewManager(session.Config{
		Connect:        backendConnector(cfg),
		DefaultAccount: cfg.Account,
		CallTimeout:    time.Duration(cfg.CallTimeoutSec) * time.Second,
	})

	ctx := context.Background()
	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.Close()

	result, err := session.Do(ctx, sess, f)
	if err != nil {
		return err
	}

	return output(result)
}

// output prints the operation result to stdout.
func output(v any) error {
	if outputFormat == "text" {
		fmt.Print(formatText(v))
		return nil
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// formatText renders the known record types for humans. Anything else
// falls back to compact JSON.
func formatText(v any) string {
	var sb strings.Builder

	switch t := v.(type) {
	case bridge.OperationResult:
		if t.Success {
			sb.WriteString("OK: " + t.Message)
		} else {
			sb.WriteString("FAILED: " + t.Message)
		}
		if t.EntryID != "" {
			sb.WriteString(" (id " + t.EntryID + ")")
		}
		sb.WriteString("\n")

	case bridge.EmailRecord:
		sb.WriteString(formatEmail(t, true))

	case []bridge.EmailRecord:
		if len(t) == 0 {
			return "No messages.\n"
		}
		for _, e := range t {
			sb.WriteString(formatEmail(e, false))
			sb.WriteString("\n")
		}

	case bridge.EventRecord:
		sb.WriteString(formatEvent(t, true))

	case []bridge.EventRecord:
		if len(t) == 0 {
			return "No appointments.\n"
		}
		for _, e := range t {
			sb.WriteString(formatEvent(e, false))
			sb.WriteString("\n")
		}

	case bridge.TaskRecord:
		sb.WriteString(formatTask(t))

	case []bridge.TaskRecord:
		if len(t) == 0 {
			return "No tasks.\n"
		}
		for _, task := range t {
			sb.WriteString(formatTask(task))
			sb.WriteString("\n")
		}

	case []bridge.FolderRecord:
		for _, f := range t {
			indent := strings.Repeat("  ", f.Depth)
			sb.WriteString(fmt.Sprintf("%s%s (%d items)\n",
				indent, f.Name, f.ItemCount))
		}

	case []bridge.FreeBusyRecord:
		for _, fb := range t {
			if !fb.Resolved {
				sb.WriteString(fmt.Sprintf("%s: unresolved (%s)\n",
					fb.Email, fb.Error))
				continue
			}
			sb.WriteString(fmt.Sprintf("%s [%s .. %s]\n  %s\n",
				fb.Email, fb.StartDate, fb.EndDate, fb.FreeBusy))
		}

	case []bridge.SavedAttachment:
		if len(t) == 0 {
			return "No attachments.\n"
		}
		for _, a := range t {
			sb.WriteString(fmt.Sprintf("%s (%d bytes) -> %s\n",
				a.FileName, a.Size, a.Path))
		}

	default:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v\n", v)
		}
		return string(data) + "\n"
	}

	return sb.String()
}

func formatEmail(e bridge.EmailRecord, full bool) string {
	var sb strings.Builder

	if e.Unread {
		sb.WriteString("* ")
	}
	sb.WriteString(e.Subject + "\n")
	sb.WriteString(fmt.Sprintf("  From: %s <%s>\n", e.SenderName, e.Sender))
	if e.To != "" {
		sb.WriteString("  To: " + e.To + "\n")
	}
	if e.CC != "" {
		sb.WriteString("  CC: " + e.CC + "\n")
	}
	if e.ReceivedTime != "" {
		sb.WriteString("  Received: " + e.ReceivedTime + "\n")
	}
	if e.HasAttachments {
		sb.WriteString("  Has attachments\n")
	}
	sb.WriteString("  ID: " + e.EntryID + "\n")

	if full && e.Body != "" {
		sb.WriteString(strings.Repeat("-", 60) + "\n")
		sb.WriteString(e.Body + "\n")
	}

	return sb.String()
}

func formatEvent(e bridge.EventRecord, full bool) string {
	var sb strings.Builder

	sb.WriteString(e.Subject + "\n")
	sb.WriteString(fmt.Sprintf("  %s .. %s", e.Start, e.End))
	if e.AllDay {
		sb.WriteString(" (all day)")
	}
	sb.WriteString("\n")
	if e.Location != "" {
		sb.WriteString("  Location: " + e.Location + "\n")
	}
	if e.Organizer != "" {
		sb.WriteString("  Organizer: " + e.Organizer + "\n")
	}
	if e.RequiredAttendees != "" {
		sb.WriteString("  Required: " + e.RequiredAttendees + "\n")
	}
	sb.WriteString(fmt.Sprintf("  Status: %s / response %s\n",
		e.MeetingStatus, e.ResponseStatus))
	sb.WriteString("  ID: " + e.EntryID + "\n")

	if full && e.Body != "" {
		sb.WriteString(strings.Repeat("-", 60) + "\n")
		sb.WriteString(e.Body + "\n")
	}

	return sb.String()
}

func formatTask(t bridge.TaskRecord) string {
	var sb strings.Builder

	if t.Complete {
		sb.WriteString("[x] ")
	} else {
		sb.WriteString("[ ] ")
	}
	sb.WriteString(t.Subject + "\n")
	if t.DueDate != nil {
		sb.WriteString("  Due: " + *t.DueDate + "\n")
	}
	if t.Status != nil {
		sb.WriteString(fmt.Sprintf("  Status: %s (%d%%)\n",
			*t.Status, t.PercentComplete))
	}
	if t.Priority != nil {
		sb.WriteString("  Priority: " + *t.Priority + "\n")
	}
	sb.WriteString("  ID: " + t.EntryID + "\n")

	return sb.String()
}
