package queue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhousvawls/daily-coach/internal/remote"
)

// Kind is the variant of an Operation.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Operation is one pending mutation. It is a tagged variant: a create carries
// a full Record, an update carries Fields, a delete carries only the target.
//
// The target is addressed one of three ways: RemoteID when known, LocalID for
// goals and tiny goals (resolved through the identity table at send time), or
// Key for date and string keyed collections (resolved against the current
// user).
type Operation struct {
	ID         string
	Kind       Kind
	Collection remote.Collection
	EnqueuedAt time.Time
	RetryCount int

	LocalID  *int64
	Key      string
	RemoteID string

	Record remote.Record
	Fields remote.Fields
}

// Create returns a create operation for rec.
func Create(rec remote.Record) Operation {
	return Operation{
		Kind:       KindCreate,
		Collection: rec.Collection(),
		RemoteID:   rec.RecordID(),
		Key:        remote.Key(rec),
		Record:     rec,
	}
}

// Update returns an update operation patching fields of the record with
// natural key key in c.
func Update(c remote.Collection, key string, fields remote.Fields) Operation {
	return Operation{Kind: KindUpdate, Collection: c, Key: key, Fields: fields}
}

// Delete returns a delete operation for the record with natural key key.
func Delete(c remote.Collection, key string) Operation {
	return Operation{Kind: KindDelete, Collection: c, Key: key}
}

// WithLocalID addresses the operation by local integer id.
func (op Operation) WithLocalID(id int64) Operation {
	op.LocalID = &id
	return op
}

// Validate checks the variant carries what it needs.
func (op Operation) Validate() error {
	if _, err := remote.ParseCollection(string(op.Collection)); err != nil {
		return err
	}
	switch op.Kind {
	case KindCreate:
		if op.Record == nil {
			return fmt.Errorf("create operation on %s has no record", op.Collection)
		}
		if op.Record.Collection() != op.Collection {
			return fmt.Errorf("create operation on %s carries a %s record", op.Collection, op.Record.Collection())
		}
	case KindUpdate:
		if len(op.Fields) == 0 {
			return fmt.Errorf("update operation on %s has no fields", op.Collection)
		}
	case KindDelete:
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
	if op.LocalID == nil && op.Key == "" && op.RemoteID == "" {
		return fmt.Errorf("%s operation on %s has no target", op.Kind, op.Collection)
	}
	return nil
}

// Targets reports whether op addresses the same entity as other.
func (op Operation) Targets(other Operation) bool {
	if op.Collection != other.Collection {
		return false
	}
	if op.LocalID != nil && other.LocalID != nil {
		return *op.LocalID == *other.LocalID
	}
	if op.Key != "" && other.Key != "" {
		return op.Key == other.Key
	}
	return op.RemoteID != "" && op.RemoteID == other.RemoteID
}

func (op Operation) String() string {
	target := op.RemoteID
	switch {
	case op.LocalID != nil:
		target = fmt.Sprintf("local:%d", *op.LocalID)
	case op.Key != "":
		target = op.Key
	}
	return fmt.Sprintf("%s %s %s", op.Kind, op.Collection, target)
}

type wireOperation struct {
	ID         string            `json:"operationId"`
	Kind       Kind              `json:"kind"`
	Collection remote.Collection `json:"collection"`
	EnqueuedAt time.Time         `json:"enqueuedAt"`
	RetryCount int               `json:"retryCount"`
	LocalID    *int64            `json:"localId,omitempty"`
	Key        string            `json:"key,omitempty"`
	RemoteID   string            `json:"remoteId,omitempty"`
	Record     json.RawMessage   `json:"record,omitempty"`
	Fields     remote.Fields     `json:"fields,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (op Operation) MarshalJSON() ([]byte, error) {
	w := wireOperation{
		ID:         op.ID,
		Kind:       op.Kind,
		Collection: op.Collection,
		EnqueuedAt: op.EnqueuedAt,
		RetryCount: op.RetryCount,
		LocalID:    op.LocalID,
		Key:        op.Key,
		RemoteID:   op.RemoteID,
		Fields:     op.Fields,
	}
	if op.Record != nil {
		data, err := json.Marshal(op.Record)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s record: %w", op.Collection, err)
		}
		w.Record = data
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. The record variant is chosen by
// the collection.
func (op *Operation) UnmarshalJSON(data []byte) error {
	var w wireOperation
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return err
	}
	*op = Operation{
		ID:         w.ID,
		Kind:       w.Kind,
		Collection: w.Collection,
		EnqueuedAt: w.EnqueuedAt,
		RetryCount: w.RetryCount,
		LocalID:    w.LocalID,
		Key:        w.Key,
		RemoteID:   w.RemoteID,
		Fields:     w.Fields,
	}
	if len(w.Record) > 0 && string(w.Record) != "null" {
		rec, err := remote.UnmarshalRecord(w.Collection, w.Record)
		if err != nil {
			return fmt.Errorf("operation %s: %w", w.ID, err)
		}
		op.Record = rec
	}
	return nil
}
