package commands

import (
	"github.com/spf13/cobra"

	"github.com/dgower/olbridge/internal/bridge"
)

var (
	emailsLimit  int
	emailsFolder string
)

var emailsCmd = &cobra.Command{
	Use:   "emails",
	Short: "List recent emails",
	Long:  `List the most recent messages in a folder, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runEmails,
}

func init() {
	emailsCmd.Flags().IntVarP(&emailsLimit, "limit", "n", 10,
		"Maximum number of messages to list")
	emailsCmd.Flags().StringVar(&emailsFolder, "folder", "",
		"Folder to list (default: Inbox)")
}

func runEmails(cmd *cobra.Command, args []string) error {
	return runOp(func(b *bridge.Bridge) (any, error) {
		return b.ListEmails(emailsLimit, emailsFolder)
	})
}

var emailCmd = &cobra.Command{
	Use:   "email <entry-id>",
	Short: "Show one email including its body",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(func(b *bridge.Bridge) (any, error) {
			return b.GetEmail(args[0])
		})
	},
}

var (
	sendTo      []string
	sendCC      []string
	sendBCC     []string
	sendSubject string
	sendBody    string
	sendHTML    string
	sendAttach  []string
	sendDraft   bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a new email or save it as a draft",
	Args:  cobra.NoArgs,
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringSliceVar(&sendTo, "to", nil,
		"Recipient addresses")
	sendCmd.Flags().StringSliceVar(&sendCC, "cc", nil,
		"CC addresses")
	sendCmd.Flags().StringSliceVar(&sendBCC, "bcc", nil,
		"BCC addresses")
	sendCmd.Flags().StringVar(&sendSubject, "subject", "",
		"Message subject")
	sendCmd.Flags().StringVar(&sendBody, "body", "",
		"Plain text body")
	sendCmd.Flags().StringVar(&sendHTML, "html", "",
		"HTML body (takes precedence on the wire)")
	sendCmd.Flags().StringSliceVar(&sendAttach, "attach", nil,
		"File paths to attach")
	sendCmd.Flags().BoolVar(&sendDraft, "draft", false,
		"Save to Drafts instead of sending")
}

func runSend(cmd *cobra.Command, args []string) error {
	return runOp(func(b *bridge.Bridge) (any, error) {
		return b.SendEmail(bridge.SendEmailRequest{
			To:          sendTo,
			CC:          sendCC,
			BCC:         sendBCC,
			Subject:     sendSubject,
			Body:        sendBody,
			HTMLBody:    sendHTML,
			Attachments: sendAttach,
			Draft:       sendDraft,
		})
	})
}

var (
	replyBody  string
	replyAll   bool
	replyDraft bool
)

var replyCmd = &cobra.Command{
	Use:   "reply <entry-id>",
	Short: "Reply to an email",
	Long: `Reply to an email, quoting the original below the new body.
With --all the reply goes to every original recipient.`,
	Args: cobra.ExactArgs(1),
	RunE: runReply,
}

func init() {
	replyCmd.Flags().StringVar(&replyBody, "body", "",
		"Reply body")
	replyCmd.Flags().BoolVar(&replyAll, "all", false,
		"Reply to all recipients")
	replyCmd.Flags().BoolVar(&replyDraft, "draft", false,
		"Save the reply as a draft instead of sending")
}

func runReply(cmd *cobra.Command, args []string) error {
	return runOp(func(b *bridge.Bridge) (any, error) {
		return b.ReplyEmail(args[0], replyBody, replyAll, replyDraft)
	})
}

var (
	forwardTo      []string
	forwardComment string
	forwardDraft   bool
)

var forwardCmd = &cobra.Command{
	Use:   "forward <entry-id>",
	Short: "Forward an email",
	Args:  cobra.ExactArgs(1),
	RunE:  runForward,
}

func init() {
	forwardCmd.Flags().StringSliceVar(&forwardTo, "to", nil,
		"Recipient addresses")
	forwardCmd.Flags().StringVar(&forwardComment, "comment", "",
		"Comment placed above the forwarded message")
	forwardCmd.Flags().BoolVar(&forwardDraft, "draft", false,
		"Save the forward as a draft instead of sending")
}

func runForward(cmd *cobra.Command, args []string) error {
	return runOp(func(b *bridge.Bridge) (any, error) {
		return b.ForwardEmail(args[0], forwardTo, forwardComment,
			forwardDraft)
	})
}

var markUnread bool

var markCmd = &cobra.Command{
	Use:   "mark <entry-id>",
	Short: "Mark an email read or unread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(func(b *bridge.Bridge) (any, error) {
			return b.MarkEmail(args[0], markUnread)
		})
	},
}

func init() {
	markCmd.Flags().BoolVar(&markUnread, "unread", false,
		"Mark unread instead of read")
}

var moveCmd = &cobra.Command{
	Use:   "move <entry-id> <folder>",
	Short: "Move an email to another folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(func(b *bridge.Bridge) (any, error) {
			return b.MoveEmail(args[0], args[1])
		})
	},
}

var deleteEmailCmd = &cobra.Command{
	Use:   "delete-email <entry-id>",
	Short: "Delete an email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(func(b *bridge.Bridge) (any, error) {
			return b.DeleteEmail(args[0])
		})
	},
}

var (
	searchSubject   string
	searchSender    string
	searchBody      string
	searchUnread    bool
	searchHasAttach bool
	searchFolder    string
	searchLimit     int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search emails with server-side filters",
	Long: `Search a folder with filters evaluated by the store itself, not by
scanning items client-side. Text filters are substring matches.`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchSubject, "subject", "",
		"Subject substring")
	searchCmd.Flags().StringVar(&searchSender, "sender", "",
		"Sender name or address substring")
	searchCmd.Flags().StringVar(&searchBody, "body", "",
		"Body substring")
	searchCmd.Flags().BoolVar(&searchUnread, "unread", false,
		"Only unread (or with =false, only read) messages")
	searchCmd.Flags().BoolVar(&searchHasAttach, "has-attachments", false,
		"Only messages with (or with =false, without) attachments")
	searchCmd.Flags().StringVar(&searchFolder, "folder", "",
		"Folder to search (default: Inbox)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10,
		"Maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	q := bridge.SearchQuery{
		Subject: searchSubject,
		Sender:  searchSender,
		Body:    searchBody,
		Folder:  searchFolder,
		Limit:   searchLimit,
	}

	// Boolean filters are tri-state: only flags the caller actually set
	// become part of the restriction.
	if cmd.Flags().Changed("unread") {
		v := searchUnread
		q.Unread = &v
	}
	if cmd.Flags().Changed("has-attachments") {
		v := searchHasAttach
		q.HasAttachments = &v
	}

	return runOp(func(b *bridge.Bridge) (any, error) {
		return b.SearchEmails(q)
	})
}

var attachmentsDir string

var attachmentsCmd = &cobra.Command{
	Use:   "attachments <entry-id>",
	Short: "Download an email's attachments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOp(func(b *bridge.Bridge) (any, error) {
			return b.DownloadAttachments(args[0], attachmentsDir)
		})
	},
}

func init() {
	attachmentsCmd.Flags().StringVar(&attachmentsDir, "dir", ".",
		"Directory to save attachments into")
}
