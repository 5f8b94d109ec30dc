package simstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dgower/olbridge/internal/mapi"
)

// span is a bounded date window applied to a calendar collection.
type span struct {
	start, end time.Time
}

// itemCollection is a lazily-materialized view over the items of one
// folder. It implements mapi.Collection. Restrict returns a narrowed
// clone; the query runs when the collection is first counted or indexed.
type itemCollection struct {
	store    *Store
	folderID string

	conds []string
	args  []any

	sortCol  string
	sortDesc bool

	includeRecurrences bool
	window             *span

	// items is the materialized result, nil until the first read.
	items []*itemObject
}

var _ mapi.Collection = (*itemCollection)(nil)

func newItemCollection(store *Store, folderID string) *itemCollection {
	return &itemCollection{
		store:    store,
		folderID: folderID,
	}
}

// clone copies the collection without its materialized result.
func (c *itemCollection) clone() *itemCollection {
	out := &itemCollection{
		store:              c.store,
		folderID:           c.folderID,
		conds:              append([]string(nil), c.conds...),
		args:               append([]any(nil), c.args...),
		sortCol:            c.sortCol,
		sortDesc:           c.sortDesc,
		includeRecurrences: c.includeRecurrences,
	}
	if c.window != nil {
		w := *c.window
		out.window = &w
	}
	return out
}

// Restrict implements mapi.Collection.
func (c *itemCollection) Restrict(filter string) (mapi.Collection, error) {
	parsed, err := parseRestriction(filter)
	if err != nil {
		return nil, err
	}

	out := c.clone()
	if parsed.window != nil {
		out.window = parsed.window
	}
	if parsed.cond != "" {
		out.conds = append(out.conds, parsed.cond)
		out.args = append(out.args, parsed.args...)
	}

	return out, nil
}

// sortColumns maps the bracketed sort property names the query dialect
// accepts to their columns.
var sortColumns = map[string]string{
	"[ReceivedTime]": "received_time",
	"[Start]":        "start_time",
	"[End]":          "end_time",
	"[DueDate]":      "due_date",
	"[Subject]":      "subject",
}

// Sort implements mapi.Collection.
func (c *itemCollection) Sort(property string, descending bool) error {
	col, ok := sortColumns[property]
	if !ok {
		return fmt.Errorf("cannot sort by %s", property)
	}

	c.sortCol = col
	c.sortDesc = descending
	c.items = nil

	return nil
}

// SetIncludeRecurrences implements mapi.Collection.
func (c *itemCollection) SetIncludeRecurrences(include bool) error {
	c.includeRecurrences = include
	c.items = nil
	return nil
}

// Count implements mapi.Collection.
func (c *itemCollection) Count() (int, error) {
	if err := c.materialize(); err != nil {
		return 0, err
	}
	return len(c.items), nil
}

// Item implements mapi.Collection.
func (c *itemCollection) Item(i int) (mapi.Object, error) {
	if err := c.materialize(); err != nil {
		return nil, err
	}
	if i < 1 || i > len(c.items) {
		return nil, fmt.Errorf("index %d out of range [1, %d]", i,
			len(c.items))
	}

	return c.items[i-1], nil
}

// Add implements mapi.Collection: a new unsaved item of the folder's
// native class.
func (c *itemCollection) Add() (mapi.Object, error) {
	class := mapi.ItemMail

	folder, err := c.store.loadFolder(c.folderID)
	if err == nil {
		switch folder.name {
		case "Calendar":
			class = mapi.ItemAppointment
		case "Tasks":
			class = mapi.ItemTask
		}
	}

	raw, err := c.store.CreateItem(class)
	if err != nil {
		return nil, err
	}

	item := raw.(*itemObject)
	item.rec.FolderID = c.folderID

	return item, nil
}

// materialize runs the query and, when recurrence expansion is on,
// explodes recurring masters into per-occurrence objects inside the
// window.
func (c *itemCollection) materialize() error {
	if c.items != nil {
		return nil
	}

	conds := append([]string{"folder_id = ?"}, c.conds...)
	args := append([]any{c.folderID}, c.args...)

	// Without a window the query is a plain folder scan; a window
	// narrows plain rows in SQL and recurring masters in the expansion
	// pass below.
	if c.window != nil {
		cond := "(start_time <= ? AND end_time >= ?)"
		if c.includeRecurrences {
			cond = "(recur_type != '' OR " + cond + ")"
		}
		conds = append(conds, cond)
		args = append(args, c.window.end, c.window.start)
	}

	where := ""
	for i, cond := range conds {
		if i == 0 {
			where = " WHERE " + cond
			continue
		}
		where += " AND " + cond
	}

	rows, err := c.store.db.Query(
		`SELECT `+itemColumns+` FROM items`+where, args...,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	var items []*itemObject
	for rows.Next() {
		rec, err := scanItem(rows)
		if err != nil {
			return err
		}

		if c.includeRecurrences && c.window != nil &&
			rec.RecurType != "" {

			items = append(items, c.store.expand(rec, *c.window)...)
			continue
		}

		items = append(items, &itemObject{
			store:     c.store,
			rec:       rec,
			persisted: true,
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	c.sortItems(items)
	c.items = items

	return nil
}

// sortItems orders the materialized result by the collection's sort
// property. Occurrence overrides take part in the ordering, which is why
// the sort runs here and not in SQL.
func (c *itemCollection) sortItems(items []*itemObject) {
	if c.sortCol == "" {
		return
	}

	if c.sortCol == "subject" {
		sort.SliceStable(items, func(i, j int) bool {
			if c.sortDesc {
				i, j = j, i
			}
			return items[i].rec.Subject < items[j].rec.Subject
		})
		return
	}

	key := func(o *itemObject) (time.Time, bool) {
		switch c.sortCol {
		case "received_time":
			return o.rec.Received.Time, o.rec.Received.Valid
		case "start_time":
			if !o.occStart.IsZero() {
				return o.occStart, true
			}
			return o.rec.Start.Time, o.rec.Start.Valid
		case "end_time":
			if !o.occEnd.IsZero() {
				return o.occEnd, true
			}
			return o.rec.End.Time, o.rec.End.Valid
		case "due_date":
			return o.rec.DueDate.Time, o.rec.DueDate.Valid
		}
		return time.Time{}, false
	}

	sort.SliceStable(items, func(i, j int) bool {
		if c.sortDesc {
			i, j = j, i
		}

		it, iok := key(items[i])
		jt, jok := key(items[j])
		if iok != jok {
			// Items without the timestamp sort last.
			return iok
		}

		return it.Before(jt)
	})
}

// Get implements mapi.Object.
func (c *itemCollection) Get(name string) (any, error) {
	return nil, mapi.ErrNoSuchProperty
}

// Set implements mapi.Object.
func (c *itemCollection) Set(name string, value any) error {
	return mapi.ErrNoSuchProperty
}

// Call implements mapi.Object.
func (c *itemCollection) Call(name string, args ...any) (any, error) {
	return nil, fmt.Errorf("unknown method %s on item collection", name)
}

// Release implements mapi.Object.
func (c *itemCollection) Release() {}

// folderCollection is the children of one folder, or the mailbox roots
// when parentID is empty. It implements mapi.Collection.
type folderCollection struct {
	store    *Store
	parentID string

	ids []string
}

var _ mapi.Collection = (*folderCollection)(nil)

func (c *folderCollection) materialize() error {
	if c.ids != nil {
		return nil
	}

	query := `SELECT id FROM folders WHERE parent_id = ? ORDER BY name`
	args := []any{c.parentID}
	if c.parentID == "" {
		query = `SELECT id FROM folders WHERE parent_id IS NULL
		         ORDER BY name`
		args = nil
	}

	rows, err := c.store.db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
	}

	c.ids = ids
	return rows.Err()
}

func (c *folderCollection) Count() (int, error) {
	if err := c.materialize(); err != nil {
		return 0, err
	}
	return len(c.ids), nil
}

func (c *folderCollection) Item(i int) (mapi.Object, error) {
	if err := c.materialize(); err != nil {
		return nil, err
	}
	if i < 1 || i > len(c.ids) {
		return nil, fmt.Errorf("index %d out of range [1, %d]", i,
			len(c.ids))
	}

	return c.store.loadFolder(c.ids[i-1])
}

func (c *folderCollection) Restrict(filter string) (mapi.Collection, error) {
	return nil, fmt.Errorf("folder collections cannot be restricted")
}

func (c *folderCollection) Sort(property string, descending bool) error {
	return fmt.Errorf("folder collections cannot be sorted")
}

func (c *folderCollection) SetIncludeRecurrences(include bool) error {
	return fmt.Errorf("folder collections have no recurrences")
}

func (c *folderCollection) Add() (mapi.Object, error) {
	return nil, fmt.Errorf("adding folders is not supported")
}

func (c *folderCollection) Get(name string) (any, error) {
	return nil, mapi.ErrNoSuchProperty
}

func (c *folderCollection) Set(name string, value any) error {
	return mapi.ErrNoSuchProperty
}

func (c *folderCollection) Call(name string, args ...any) (any, error) {
	return nil, fmt.Errorf("unknown method %s on folder collection", name)
}

func (c *folderCollection) Release() {}

// attachmentCollection is the attachments of one item, including ones
// added but not yet persisted. It implements mapi.Collection.
type attachmentCollection struct {
	store *Store
	item  *itemObject
}

var _ mapi.Collection = (*attachmentCollection)(nil)

// load returns the persisted attachments followed by pending ones.
func (c *attachmentCollection) load() ([]*attachmentObject, error) {
	var atts []*attachmentObject

	if c.item.persisted {
		rows, err := c.store.db.Query(
			`SELECT id, file_name FROM attachments WHERE item_id = ?
			 ORDER BY rowid`,
			c.item.rec.ID,
		)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		for rows.Next() {
			a := &attachmentObject{store: c.store}
			if err := rows.Scan(&a.id, &a.fileName); err != nil {
				return nil, err
			}
			atts = append(atts, a)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	for _, p := range c.item.pendingAtts {
		atts = append(atts, &attachmentObject{
			store:    c.store,
			fileName: p.fileName,
			pending:  p.content,
		})
	}

	return atts, nil
}

func (c *attachmentCollection) Count() (int, error) {
	atts, err := c.load()
	if err != nil {
		return 0, err
	}
	return len(atts), nil
}

func (c *attachmentCollection) Item(i int) (mapi.Object, error) {
	atts, err := c.load()
	if err != nil {
		return nil, err
	}
	if i < 1 || i > len(atts) {
		return nil, fmt.Errorf("index %d out of range [1, %d]", i,
			len(atts))
	}

	return atts[i-1], nil
}

func (c *attachmentCollection) Restrict(string) (mapi.Collection, error) {
	return nil, fmt.Errorf("attachment collections cannot be restricted")
}

func (c *attachmentCollection) Sort(string, bool) error {
	return fmt.Errorf("attachment collections cannot be sorted")
}

func (c *attachmentCollection) SetIncludeRecurrences(bool) error {
	return fmt.Errorf("attachment collections have no recurrences")
}

func (c *attachmentCollection) Add() (mapi.Object, error) {
	return nil, fmt.Errorf("use the Add method with a file path")
}

func (c *attachmentCollection) Get(name string) (any, error) {
	return nil, mapi.ErrNoSuchProperty
}

func (c *attachmentCollection) Set(name string, value any) error {
	return mapi.ErrNoSuchProperty
}

// Call implements mapi.Object. Add attaches a local file to the owning
// item.
func (c *attachmentCollection) Call(name string, args ...any) (any, error) {
	if name != "Add" {
		return nil, fmt.Errorf("unknown method %s on attachment "+
			"collection", name)
	}

	if len(args) != 1 {
		return nil, fmt.Errorf("Add expects a file path")
	}
	path, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("Add expects a path string, got %T",
			args[0])
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fileName := filepath.Base(path)

	if !c.item.persisted {
		c.item.pendingAtts = append(c.item.pendingAtts,
			pendingAttachment{fileName: fileName, content: content})
		return nil, nil
	}

	_, err = c.store.db.Exec(
		`INSERT INTO attachments (id, item_id, file_name, content)
		 VALUES (?, ?, ?, ?)`,
		uuid.NewString(), c.item.rec.ID, fileName, content,
	)
	return nil, err
}

func (c *attachmentCollection) Release() {}
