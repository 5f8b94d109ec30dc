package bridge

import (
	"strings"
	"time"

	"github.com/dgower/olbridge/internal/mapi"
)

// taskStatusNames maps the store's task status codes to record strings.
var taskStatusNames = map[int]string{
	0: "not_started",
	1: "in_progress",
	2: "complete",
	3: "waiting",
	4: "deferred",
}

// taskStatusCodes is the inverse of taskStatusNames for update requests.
var taskStatusCodes = map[string]int{
	"not_started": 0,
	"in_progress": 1,
	"complete":    2,
	"waiting":     3,
	"deferred":    4,
}

// importanceNames maps the store's importance codes.
var importanceNames = map[int]string{
	0: "low",
	1: "normal",
	2: "high",
}

// importanceCodes is the inverse of importanceNames.
var importanceCodes = map[string]int{
	"low":    0,
	"normal": 1,
	"high":   2,
}

// noDueDateYear marks the store's "no due date" sentinel: items without a
// due date carry a timestamp in the year 4501.
const noDueDateYear = 4500

// taskRecord builds the record for one to-do item.
func taskRecord(item mapi.Object) TaskRecord {
	rec := TaskRecord{
		EntryID:         Attr(item, "EntryID", ""),
		Subject:         Attr(item, "Subject", "(no subject)"),
		Complete:        Attr(item, "Complete", false),
		PercentComplete: Attr(item, "PercentComplete", 0),
	}

	if due, ok := unpack(OptAttr[time.Time](item, "DueDate")); ok {
		if due.Year() < noDueDateYear {
			s := due.Format(dateFormat)
			rec.DueDate = &s
		}
	}

	if code, ok := unpack(OptAttr[int](item, "Status")); ok {
		if name, ok := taskStatusNames[code]; ok {
			rec.Status = &name
		}
	}

	if code, ok := unpack(OptAttr[int](item, "Importance")); ok {
		if name, ok := importanceNames[code]; ok {
			rec.Priority = &name
		}
	}

	return rec
}

// ListTasks returns to-do items from the tasks folder, soonest due first.
// Completed tasks are excluded unless requested; the exclusion is pushed
// down as a restriction and re-checked per item, since foreign items can
// slip through the store-side filter.
func (b *Bridge) ListTasks(includeCompleted bool,
	limit int) ([]TaskRecord, error) {

	folder, err := b.store.DefaultFolder(mapi.FolderTasks)
	if err != nil {
		return nil, automationErr("ListTasks", err)
	}

	items, err := childCollection(folder, "Items")
	if err != nil {
		return nil, automationErr("ListTasks", err)
	}

	if !includeCompleted {
		items, err = items.Restrict(incompleteTaskFilter)
		if err != nil {
			return nil, automationErr("ListTasks", err)
		}
	}

	if err := items.Sort("[DueDate]", false); err != nil {
		return nil, automationErr("ListTasks", err)
	}

	limit = clampLimit(limit)

	count, err := items.Count()
	if err != nil {
		return nil, automationErr("ListTasks", err)
	}

	records := make([]TaskRecord, 0, limit)
	for i := 1; i <= count && len(records) < limit; i++ {
		item, err := items.Item(i)
		if err != nil {
			continue
		}

		rec := taskRecord(item)
		if !includeCompleted && rec.Complete {
			continue
		}

		records = append(records, rec)
	}

	log.Debugf("Listed %d tasks (includeCompleted=%v)", len(records),
		includeCompleted)

	return records, nil
}

// GetTask returns one to-do item with its body.
func (b *Bridge) GetTask(id string) (TaskRecord, error) {
	item, err := b.ItemByID(id)
	if err != nil {
		return TaskRecord{}, err
	}

	rec := taskRecord(item)
	rec.Body = Attr(item, "Body", "")

	return rec, nil
}

// CreateTaskRequest describes a new to-do item. DueDate is a date-only
// string; Priority is low, normal or high.
type CreateTaskRequest struct {
	Subject  string
	Body     string
	DueDate  string
	Priority string
}

// CreateTask creates a to-do item. A date-only due date is stored at noon
// local time so timezone conversion on the store side cannot shift it to
// the neighboring day.
func (b *Bridge) CreateTask(req CreateTaskRequest) (OperationResult, error) {
	if req.Subject == "" {
		return OperationResult{}, validationErrf("subject",
			"subject must not be empty")
	}

	var due time.Time
	if req.DueDate != "" {
		d, err := time.ParseInLocation(dateFormat, req.DueDate, time.Local)
		if err != nil {
			return OperationResult{}, validationErrf("due_date",
				"due date must be YYYY-MM-DD")
		}
		due = d.Add(12 * time.Hour)
	}

	var importance int
	if req.Priority != "" {
		code, ok := importanceCodes[strings.ToLower(req.Priority)]
		if !ok {
			return OperationResult{}, validationErrf("priority",
				"priority must be low, normal or high")
		}
		importance = code
	}

	item, err := b.store.CreateItem(mapi.ItemTask)
	if err != nil {
		return OperationResult{}, automationErr("CreateTask", err)
	}

	if err := item.Set("Subject", req.Subject); err != nil {
		return OperationResult{}, automationErr("CreateTask", err)
	}
	if req.Body != "" {
		item.Set("Body", req.Body)
	}
	if !due.IsZero() {
		if err := item.Set("DueDate", due); err != nil {
			return OperationResult{}, automationErr("CreateTask", err)
		}
	}
	if req.Priority != "" {
		item.Set("Importance", importance)
	}

	if _, err := item.Call("Save"); err != nil {
		return OperationResult{}, automationErr("CreateTask", err)
	}

	log.Infof("Created task %q", req.Subject)

	return okResult("task created", Attr(item, "EntryID", "")), nil
}

// UpdateTaskRequest carries the fields to change on a to-do item. Nil
// fields are left untouched.
type UpdateTaskRequest struct {
	Subject         *string
	Body            *string
	DueDate         *string
	Priority        *string
	Status          *string
	PercentComplete *int
}

// UpdateTask applies a partial update to a to-do item. Completion state,
// status and percentage are coupled: status complete implies 100 percent,
// percent 100 implies status complete, and lowering the percentage of a
// completed task reopens it. All inputs are validated before the first
// write.
func (b *Bridge) UpdateTask(id string,
	req UpdateTaskRequest) (OperationResult, error) {

	var due time.Time
	if req.DueDate != nil && *req.DueDate != "" {
		d, err := time.ParseInLocation(
			dateFormat, *req.DueDate, time.Local,
		)
		if err != nil {
			return OperationResult{}, validationErrf("due_date",
				"due date must be YYYY-MM-DD")
		}
		due = d.Add(12 * time.Hour)
	}

	statusCode := -1
	if req.Status != nil {
		code, ok := taskStatusCodes[strings.ToLower(*req.Status)]
		if !ok {
			return OperationResult{}, validationErrf("status",
				"status must be one of not_started, in_progress, "+
					"complete, waiting, deferred")
		}
		statusCode = code
	}

	importance := -1
	if req.Priority != nil {
		code, ok := importanceCodes[strings.ToLower(*req.Priority)]
		if !ok {
			return OperationResult{}, validationErrf("priority",
				"priority must be low, normal or high")
		}
		importance = code
	}

	if req.PercentComplete != nil &&
		(*req.PercentComplete < 0 || *req.PercentComplete > 100) {

		return OperationResult{}, validationErrf("percent_complete",
			"percentage must be between 0 and 100")
	}

	item, err := b.ItemByID(id)
	if err != nil {
		return OperationResult{}, err
	}

	if req.Subject != nil {
		if err := item.Set("Subject", *req.Subject); err != nil {
			return OperationResult{}, automationErr("UpdateTask", err)
		}
	}
	if req.Body != nil {
		if err := item.Set("Body", *req.Body); err != nil {
			return OperationResult{}, automationErr("UpdateTask", err)
		}
	}
	if !due.IsZero() {
		if err := item.Set("DueDate", due); err != nil {
			return OperationResult{}, automationErr("UpdateTask", err)
		}
	}
	if importance >= 0 {
		if err := item.Set("Importance", importance); err != nil {
			return OperationResult{}, automationErr("UpdateTask", err)
		}
	}

	if statusCode >= 0 {
		if err := item.Set("Status", statusCode); err != nil {
			return OperationResult{}, automationErr("UpdateTask", err)
		}
		// Status complete drags completion along; the store keeps
		// PercentComplete in sync once Complete flips.
		if statusCode == 2 {
			item.Set("Complete", true)
		}
	}

	if req.PercentComplete != nil {
		pct := *req.PercentComplete
		if err := item.Set("PercentComplete", pct); err != nil {
			return OperationResult{}, automationErr("UpdateTask", err)
		}
		if pct == 100 {
			item.Set("Complete", true)
		} else if Attr(item, "Complete", false) {
			item.Set("Complete", false)
		}
	}

	if _, err := item.Call("Save"); err != nil {
		return OperationResult{}, automationErr("UpdateTask", err)
	}

	return okResult("task updated", id), nil
}

// CompleteTask marks a to-do item as done. Completing an already-complete
// task succeeds without change.
func (b *Bridge) CompleteTask(id string) (OperationResult, error) {
	item, err := b.ItemByID(id)
	if err != nil {
		return OperationResult{}, err
	}

	if Attr(item, "Complete", false) {
		return okResult("task already complete", id), nil
	}

	if _, err := item.Call("MarkComplete"); err != nil {
		// Older store builds miss MarkComplete on some item classes.
		if err := item.Set("Complete", true); err != nil {
			return OperationResult{}, automationErr("CompleteTask", err)
		}
		if _, err := item.Call("Save"); err != nil {
			return OperationResult{}, automationErr("CompleteTask", err)
		}
	}

	log.Infof("Completed task %s", id)

	return okResult("task completed", id), nil
}

// DeleteTask deletes a to-do item.
func (b *Bridge) DeleteTask(id string) (OperationResult, error) {
	item, err := b.ItemByID(id)
	if err != nil {
		return OperationResult{}, err
	}

	if _, err := item.Call("Delete"); err != nil {
		return OperationResult{}, automationErr("DeleteTask", err)
	}

	return okResult("task deleted", ""), nil
}
