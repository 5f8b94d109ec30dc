// Package mapi defines the dynamic-object boundary between the bridge and
// whatever automation surface backs it. The groupware application's items
// are loosely typed: a property that exists on a meeting request may raise
// on a plain message, so the interfaces here expose property access as
// fallible calls rather than as struct fields. Two backends implement the
// package: the real COM automation backend (internal/outlook) and the
// sqlite-backed simulated store (internal/simstore).
package mapi

import "errors"

var (
	// ErrNotFound is returned by Store.ItemFromID when the identifier
	// does not resolve to a live item. Callers depend on this being
	// distinguishable from a transport fault.
	ErrNotFound = errors.New("item not found")

	// ErrNoSuchProperty is returned by Object.Get when the item does not
	// expose the named property. The bridge's attribute-safe accessor
	// converts this (and every other read failure) into a default value.
	ErrNoSuchProperty = errors.New("no such property")

	// ErrSessionClosed is returned when an operation is attempted against
	// a store whose session has already been released.
	ErrSessionClosed = errors.New("automation session closed")
)

// Object is one dynamically-typed item exposed by the automation surface:
// a message, an appointment, a task, a folder, a recipient, an attachment.
// Property values are returned as string, bool, int, time.Time, Object or
// Collection depending on the property.
//
// Objects are NOT safe for concurrent use. Every call against one session
// must originate from the session's single worker thread.
type Object interface {
	// Get reads the named property.
	Get(name string) (any, error)

	// Set writes the named property. The change is not durable until
	// Call("Save") succeeds.
	Set(name string, value any) error

	// Call invokes the named method (Save, Send, Delete, Reply, Move,
	// Resolve, ...) and returns its result, which may be nil, a scalar,
	// or another Object.
	Call(name string, args ...any) (any, error)

	// Release drops the underlying automation reference. Releasing twice
	// is a no-op.
	Release()
}

// Collection is an ordered, one-based collection of Objects (a folder's
// Items, a store's Folders, an item's Attachments). Restrict and Sort
// execute inside the store, never in the caller.
type Collection interface {
	Object

	// Count returns the number of objects in the collection. With
	// recurrence expansion enabled the count of an unrestricted calendar
	// collection is unbounded; callers must Restrict first.
	Count() (int, error)

	// Item returns the object at the given one-based index.
	Item(i int) (Object, error)

	// Restrict returns a new collection containing only objects matching
	// the filter, evaluated by the store itself. The receiver is not
	// modified.
	Restrict(filter string) (Collection, error)

	// Sort orders the collection by the given bracketed property name,
	// e.g. "[ReceivedTime]".
	Sort(property string, descending bool) error

	// SetIncludeRecurrences toggles expansion of recurring series into
	// individual occurrences. Expansion requires an ascending Sort and a
	// prior Restrict to a bounded date window; enabling it without a
	// restriction is the "recurrence explosion" failure mode.
	SetIncludeRecurrences(include bool) error

	// Add creates a new unsaved object inside the collection's folder.
	Add() (Object, error)
}

// WellKnownFolder identifies a default folder of the store. The numeric
// values match the automation surface's OlDefaultFolders constants so the
// COM backend can pass them through unchanged.
type WellKnownFolder int

const (
	FolderDeleted  WellKnownFolder = 3
	FolderSent     WellKnownFolder = 5
	FolderInbox    WellKnownFolder = 6
	FolderCalendar WellKnownFolder = 9
	FolderTasks    WellKnownFolder = 13
	FolderDrafts   WellKnownFolder = 16
)

// ItemClass identifies the type of item created by Store.CreateItem. The
// values match the automation surface's OlItemType constants.
type ItemClass int

const (
	ItemMail        ItemClass = 0
	ItemAppointment ItemClass = 1
	ItemTask        ItemClass = 3
)

// Store is the root of one automation session: the application handle plus
// its messaging namespace. A Store is created once per process by a
// backend connector and owned by the session manager, which serializes all
// access onto one locked OS thread.
type Store interface {
	// ItemFromID resolves an opaque entry identifier to its live item in
	// O(1), without scanning any folder. Returns ErrNotFound when the
	// identifier does not resolve; any other error is a transport fault.
	ItemFromID(id string) (Object, error)

	// DefaultFolder returns one of the store's well-known folders.
	DefaultFolder(f WellKnownFolder) (Object, error)

	// Roots returns the top-level folder collection, one root per
	// account/store mounted in the session.
	Roots() (Collection, error)

	// CreateItem creates a new unsaved item of the given class in the
	// store's default location for that class.
	CreateItem(class ItemClass) (Object, error)

	// CreateRecipient creates a recipient object for the given address,
	// used for directory resolution and free/busy lookups.
	CreateRecipient(address string) (Object, error)

	// CurrentUserAddress returns the session owner's address.
	CurrentUserAddress() (string, error)

	// Release tears down the session and drops every automation
	// reference the store still holds.
	Release()
}
