package entity

import (
	"context"
	"encoding/json"

	"github.com/dlwiest/hass-go/internal/haerr"
)

// Todo list capability bits, matching the hub's TodoListEntityFeature
// bitmask.
const (
	TodoSupportsCreateItem int64 = 1
	TodoSupportsDeleteItem int64 = 2
	TodoSupportsUpdateItem int64 = 4
)

// Todo item status values used by the hub.
const (
	TodoStatusNeedsAction = "needs_action"
	TodoStatusCompleted   = "completed"
)

// TodoItem is one entry of a todo list.
type TodoItem struct {
	UID     string `json:"uid"`
	Summary string `json:"summary"`
	Status  string `json:"status"`
	Due     string `json:"due,omitempty"`
}

type todoItemsPayload struct {
	Items []TodoItem `json:"items"`
}

// TodoList projects a todo entity. Reads go through the call-with-response
// path; mutations are capability gated.
type TodoList struct {
	*Entity
}

// NewTodoList binds a todo handle, normalizing bare ids into the todo
// domain.
func NewTodoList(sess Session, id string) *TodoList {
	return &TodoList{Entity: Bind(sess, EnsureDomain("todo", id))}
}

// Items fetches the list's items via todo.get_items. The items count is also
// mirrored in the entity's state, but only this call returns the entries
// themselves.
func (t *TodoList) Items(ctx context.Context) ([]TodoItem, error) {
	raw, err := t.CallServiceWithResponse(ctx, "get_items", nil)
	if err != nil {
		return nil, err
	}
	var payload todoItemsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, haerr.Wrap(haerr.KindCallRejected, err, "failed to decode todo items")
	}
	return payload.Items, nil
}

// SupportsCreateItem reports whether the list accepts new items.
func (t *TodoList) SupportsCreateItem() bool {
	return SupportedFeatures(t.View())&TodoSupportsCreateItem != 0
}

// SupportsUpdateItem reports whether items can be updated.
func (t *TodoList) SupportsUpdateItem() bool {
	return SupportedFeatures(t.View())&TodoSupportsUpdateItem != 0
}

// SupportsDeleteItem reports whether items can be removed.
func (t *TodoList) SupportsDeleteItem() bool {
	return SupportedFeatures(t.View())&TodoSupportsDeleteItem != 0
}

// AddItem appends an item with the given summary, failing fast when the list
// does not accept new items.
func (t *TodoList) AddItem(ctx context.Context, summary string) error {
	if err := t.requireFeature(TodoSupportsCreateItem, "add_item"); err != nil {
		return err
	}
	return t.CallService(ctx, "add_item", map[string]any{"item": summary})
}

// UpdateItem changes the status of an existing item, failing fast when the
// list does not support updates.
func (t *TodoList) UpdateItem(ctx context.Context, uid, status string) error {
	if err := t.requireFeature(TodoSupportsUpdateItem, "update_item"); err != nil {
		return err
	}
	return t.CallService(ctx, "update_item", map[string]any{
		"item":   uid,
		"status": status,
	})
}

// RemoveItem deletes an item, failing fast when the list does not support
// deletion.
func (t *TodoList) RemoveItem(ctx context.Context, uid string) error {
	if err := t.requireFeature(TodoSupportsDeleteItem, "remove_item"); err != nil {
		return err
	}
	return t.CallService(ctx, "remove_item", map[string]any{"item": uid})
}
