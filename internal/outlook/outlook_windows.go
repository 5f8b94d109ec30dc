//go:build windows

// Package outlook is the live automation backend: a thin go-ole shim that
// exposes the desktop groupware application's COM object model through
// the mapi interfaces. All typing is dynamic; the bridge above decides
// which properties and methods exist on which items.
//
// Every function in this package must run on the session's locked worker
// thread. The COM apartment is initialized on Connect and torn down on
// Store.Release.
package outlook

import (
	"fmt"
	"strings"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"github.com/dgower/olbridge/internal/mapi"
)

// notFoundHResult is the MAPI_E_NOT_FOUND failure code surfaced when an
// entry identifier does not resolve.
const notFoundHResult = "8004010F"

// Connect attaches to a running application instance, or launches one,
// and opens its messaging namespace. It must be called from the thread
// that will make every subsequent call.
func Connect() (mapi.Store, error) {
	if err := ole.CoInitializeEx(
		0, ole.COINIT_APARTMENTTHREADED,
	); err != nil {
		// S_FALSE means the apartment was already initialized on this
		// thread, which is fine.
		if oleErr, ok := err.(*ole.OleError); !ok ||
			oleErr.Code() != uintptr(1) {

			return nil, fmt.Errorf("failed to initialize COM "+
				"apartment: %w", err)
		}
	}

	unknown, err := oleutil.GetActiveObject("Outlook.Application")
	if err != nil {
		log.Debugf("No running instance, launching one")
		unknown, err = oleutil.CreateObject("Outlook.Application")
		if err != nil {
			ole.CoUninitialize()
			return nil, fmt.Errorf("failed to start application: %w",
				err)
		}
	}

	app, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		ole.CoUninitialize()
		return nil, fmt.Errorf("failed to query dispatch interface: "+
			"%w", err)
	}

	nsVar, err := oleutil.CallMethod(app, "GetNamespace", "MAPI")
	if err != nil {
		app.Release()
		ole.CoUninitialize()
		return nil, fmt.Errorf("failed to open MAPI namespace: %w", err)
	}

	log.Infof("Connected to automation surface")

	return &comStore{app: app, ns: nsVar.ToIDispatch()}, nil
}

// comStore implements mapi.Store over the application and namespace
// dispatch handles.
type comStore struct {
	app *ole.IDispatch
	ns  *ole.IDispatch
}

var _ mapi.Store = (*comStore)(nil)

// ItemFromID implements mapi.Store.
func (s *comStore) ItemFromID(id string) (mapi.Object, error) {
	v, err := oleutil.CallMethod(s.ns, "GetItemFromID", id)
	if err != nil {
		if strings.Contains(strings.ToUpper(err.Error()),
			notFoundHResult) {

			return nil, mapi.ErrNotFound
		}
		return nil, err
	}

	disp := v.ToIDispatch()
	if disp == nil {
		return nil, mapi.ErrNotFound
	}

	return &comObject{disp: disp}, nil
}

// DefaultFolder implements mapi.Store.
func (s *comStore) DefaultFolder(f mapi.WellKnownFolder) (mapi.Object, error) {
	v, err := oleutil.CallMethod(s.ns, "GetDefaultFolder", int(f))
	if err != nil {
		return nil, err
	}

	return &comObject{disp: v.ToIDispatch()}, nil
}

// Roots implements mapi.Store.
func (s *comStore) Roots() (mapi.Collection, error) {
	v, err := oleutil.GetProperty(s.ns, "Folders")
	if err != nil {
		return nil, err
	}

	return &comObject{disp: v.ToIDispatch()}, nil
}

// CreateItem implements mapi.Store.
func (s *comStore) CreateItem(class mapi.ItemClass) (mapi.Object, error) {
	v, err := oleutil.CallMethod(s.app, "CreateItem", int(class))
	if err != nil {
		return nil, err
	}

	return &comObject{disp: v.ToIDispatch()}, nil
}

// CreateRecipient implements mapi.Store.
func (s *comStore) CreateRecipient(address string) (mapi.Object, error) {
	v, err := oleutil.CallMethod(s.ns, "CreateRecipient", address)
	if err != nil {
		return nil, err
	}

	return &comObject{disp: v.ToIDispatch()}, nil
}

// CurrentUserAddress implements mapi.Store.
func (s *comStore) CurrentUserAddress() (string, error) {
	userVar, err := oleutil.GetProperty(s.ns, "CurrentUser")
	if err != nil {
		return "", err
	}
	user := userVar.ToIDispatch()
	defer user.Release()

	addrVar, err := oleutil.GetProperty(user, "Address")
	if err != nil {
		return "", err
	}

	addr, _ := addrVar.Value().(string)
	return addr, nil
}

// Release implements mapi.Store. It drops both dispatch handles and tears
// the apartment down.
func (s *comStore) Release() {
	if s.ns != nil {
		s.ns.Release()
		s.ns = nil
	}
	if s.app != nil {
		s.app.Release()
		s.app = nil
	}

	ole.CoUninitialize()
	log.Infof("Released automation handles")
}

// comObject wraps one IDispatch. It implements both mapi.Object and
// mapi.Collection; whether the collection methods work depends on the
// underlying COM object, exactly as with the automation surface itself.
type comObject struct {
	disp *ole.IDispatch
}

var _ mapi.Object = (*comObject)(nil)
var _ mapi.Collection = (*comObject)(nil)

// Get implements mapi.Object.
func (o *comObject) Get(name string) (any, error) {
	if o.disp == nil {
		return nil, mapi.ErrSessionClosed
	}

	v, err := oleutil.GetProperty(o.disp, name)
	if err != nil {
		return nil, err
	}

	return fromVariant(v), nil
}

// Set implements mapi.Object.
func (o *comObject) Set(name string, value any) error {
	if o.disp == nil {
		return mapi.ErrSessionClosed
	}

	_, err := oleutil.PutProperty(o.disp, name, toOleArg(value))
	return err
}

// Call implements mapi.Object.
func (o *comObject) Call(name string, args ...any) (any, error) {
	if o.disp == nil {
		return nil, mapi.ErrSessionClosed
	}

	oleArgs := make([]any, len(args))
	for i, a := range args {
		oleArgs[i] = toOleArg(a)
	}

	v, err := oleutil.CallMethod(o.disp, name, oleArgs...)
	if err != nil {
		return nil, err
	}

	return fromVariant(v), nil
}

// Release implements mapi.Object.
func (o *comObject) Release() {
	if o.disp != nil {
		o.disp.Release()
		o.disp = nil
	}
}

// Count implements mapi.Collection.
func (o *comObject) Count() (int, error) {
	v, err := o.Get("Count")
	if err != nil {
		return 0, err
	}

	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unexpected Count type %T", v)
	}
}

// Item implements mapi.Collection.
func (o *comObject) Item(i int) (mapi.Object, error) {
	v, err := o.Call("Item", i)
	if err != nil {
		return nil, err
	}

	obj, ok := v.(mapi.Object)
	if !ok {
		return nil, fmt.Errorf("Item(%d) returned %T", i, v)
	}

	return obj, nil
}

// Restrict implements mapi.Collection.
func (o *comObject) Restrict(filter string) (mapi.Collection, error) {
	v, err := o.Call("Restrict", filter)
	if err != nil {
		return nil, err
	}

	coll, ok := v.(mapi.Collection)
	if !ok {
		return nil, fmt.Errorf("Restrict returned %T", v)
	}

	return coll, nil
}

// Sort implements mapi.Collection.
func (o *comObject) Sort(property string, descending bool) error {
	_, err := o.Call("Sort", property, descending)
	return err
}

// SetIncludeRecurrences implements mapi.Collection.
func (o *comObject) SetIncludeRecurrences(include bool) error {
	return o.Set("IncludeRecurrences", include)
}

// Add implements mapi.Collection.
func (o *comObject) Add() (mapi.Object, error) {
	v, err := o.Call("Add")
	if err != nil {
		return nil, err
	}

	obj, ok := v.(mapi.Object)
	if !ok {
		return nil, fmt.Errorf("Add returned %T", v)
	}

	return obj, nil
}

// fromVariant converts a returned VARIANT to the value types the bridge
// expects: nested dispatch objects become comObjects, everything else
// passes through go-ole's native conversion (string, bool, integer
// widths, float64, time.Time).
func fromVariant(v *ole.VARIANT) any {
	if v == nil {
		return nil
	}

	if v.VT == ole.VT_DISPATCH {
		disp := v.ToIDispatch()
		if disp == nil {
			return nil
		}
		return &comObject{disp: disp}
	}

	return v.Value()
}

// toOleArg converts bridge-level call arguments to what go-ole can
// marshal: nested objects unwrap to their dispatch handle.
func toOleArg(v any) any {
	if obj, ok := v.(*comObject); ok {
		return obj.disp
	}
	return v
}
