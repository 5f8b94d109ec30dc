package commands

import (
	"github.com/spf13/cobra"

	"github.com/dgower/olbridge/internal/bridge"
)

var calendarDays int

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "List upcoming appointments",
	Long: `List appointments in the coming days, including every occurrence of
recurring series that falls inside the window.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(func(b *bridge.Bridge) (any, error) {
			return b.ListEvents(calendarDays)
		})
	},
}

func init() {
	calendarCmd.Flags().IntVar(&calendarDays, "days", 7,
		"Window size in days, starting today")
}

var appointmentCmd = &cobra.Command{
	Use:   "appointment",
	Short: "Manage individual appointments",
}

func init() {
	appointmentCmd.AddCommand(appointmentGetCmd)
	appointmentCmd.AddCommand(appointmentCreateCmd)
	appointmentCmd.AddCommand(appointmentEditCmd)
	appointmentCmd.AddCommand(appointmentDeleteCmd)
}

var appointmentGetCmd = &cobra.Command{
	Use:   "get <entry-id>",
	Short: "Show one appointment including its body",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(func(b *bridge.Bridge) (any, error) {
			return b.GetEvent(args[0])
		})
	},
}

var (
	apptSubject  string
	apptStart    string
	apptEnd      string
	apptDuration int
	apptLocation string
	apptBody     string
	apptAllDay   bool
	apptRequired []string
	apptOptional []string
	apptSendInv  bool
)

var appointmentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an appointment or meeting",
	Long: `Create an appointment. Naming attendees turns it into a meeting;
with --send-invitations the invitations go out immediately.`,
	Args: cobra.NoArgs,
	RunE: runAppointmentCreate,
}

func init() {
	f := appointmentCreateCmd.Flags()
	f.StringVar(&apptSubject, "subject", "", "Appointment subject")
	f.StringVar(&apptStart, "start", "",
		"Start time (2006-01-02 15:04)")
	f.StringVar(&apptEnd, "end", "",
		"End time (defaults to start plus duration)")
	f.IntVar(&apptDuration, "duration", 0,
		"Duration in minutes when --end is not given")
	f.StringVar(&apptLocation, "location", "", "Location")
	f.StringVar(&apptBody, "body", "", "Body text")
	f.BoolVar(&apptAllDay, "all-day", false, "All-day event")
	f.StringSliceVar(&apptRequired, "required", nil,
		"Required attendee addresses")
	f.StringSliceVar(&apptOptional, "optional", nil,
		"Optional attendee addresses")
	f.BoolVar(&apptSendInv, "send-invitations", false,
		"Send meeting invitations to the attendees")
}

func runAppointmentCreate(cmd *cobra.Command, args []string) error {
	return runOp(func(b *bridge.Bridge) (any, error) {
		return b.CreateEvent(bridge.CreateEventRequest{
			Subject:           apptSubject,
			Start:             apptStart,
			End:               apptEnd,
			DurationMinutes:   apptDuration,
			Location:          apptLocation,
			Body:              apptBody,
			AllDay:            apptAllDay,
			RequiredAttendees: apptRequired,
			OptionalAttendees: apptOptional,
			SendInvitations:   apptSendInv,
		})
	})
}

var (
	apptEditSubject  string
	apptEditStart    string
	apptEditEnd      string
	apptEditLocation string
	apptEditBody     string
)

var appointmentEditCmd = &cobra.Command{
	Use:   "edit <entry-id>",
	Short: "Edit an appointment",
	Long:  `Edit an appointment. Only the fields whose flags are set change.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAppointmentEdit,
}

func init() {
	f := appointmentEditCmd.Flags()
	f.StringVar(&apptEditSubject, "subject", "", "New subject")
	f.StringVar(&apptEditStart, "start", "", "New start time")
	f.StringVar(&apptEditEnd, "end", "", "New end time")
	f.StringVar(&apptEditLocation, "location", "", "New location")
	f.StringVar(&apptEditBody, "body", "", "New body text")
}

func runAppointmentEdit(cmd *cobra.Command, args []string) error {
	var req bridge.UpdateEventRequest

	if cmd.Flags().Changed("subject") {
		req.Subject = &apptEditSubject
	}
	if cmd.Flags().Changed("start") {
		req.Start = &apptEditStart
	}
	if cmd.Flags().Changed("end") {
		req.End = &apptEditEnd
	}
	if cmd.Flags().Changed("location") {
		req.Location = &apptEditLocation
	}
	if cmd.Flags().Changed("body") {
		req.Body = &apptEditBody
	}

	return runOp(func(b *bridge.Bridge) (any, error) {
		return b.UpdateEvent(args[0], req)
	})
}

var appointmentDeleteCmd = &cobra.Command{
	Use:   "delete <entry-id>",
	Short: "Delete an appointment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(func(b *bridge.Bridge) (any, error) {
			return b.DeleteEvent(args[0])
		})
	},
}

var respondCmd = &cobra.Command{
	Use:   "respond <entry-id> <accept|decline|tentative>",
	Short: "Respond to a meeting request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(func(b *bridge.Bridge) (any, error) {
			return b.RespondEvent(args[0], args[1])
		})
	},
}

var freebusyDays int

var freebusyCmd = &cobra.Command{
	Use:   "freebusy <email>...",
	Short: "Show free/busy information for one or more people",
	Long: `Show free/busy slots for the given addresses. Addresses that the
directory cannot resolve come back flagged unresolved rather than
failing the whole query.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(func(b *bridge.Bridge) (any, error) {
			return b.FreeBusy(args, freebusyDays)
		})
	},
}

func init() {
	freebusyCmd.Flags().IntVar(&freebusyDays, "days", 7,
		"Window size in days, starting today")
}
