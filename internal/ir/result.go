package ir

import (
	"encoding/json"
	"fmt"
)

// OperationResult is an operation plus its provenance: the inverse that
// undoes it, the logical time it was issued and who issued it.
//
// Results are values. The queue may swap Operation for a transformed copy
// (see WithOperation) but Timestamp and UserID never change once created.
type OperationResult struct {
	Operation Operation
	Inverse   Operation
	Timestamp int64
	UserID    string
}

// WithOperation returns a copy of r carrying op. Everything else is kept.
func (r OperationResult) WithOperation(op Operation) OperationResult {
	r.Operation = op
	return r
}

// Record returns the canonical record for r, the same shape used for
// content IDs and storage.
func (r OperationResult) Record() Object {
	return Object{
		"operation": EncodeOperation(r.Operation),
		"inverse":   EncodeOperation(r.Inverse),
		"timestamp": Int(r.Timestamp),
		"user_id":   String(r.UserID),
	}
}

// MarshalJSON implements json.Marshaler using the canonical encoding.
func (r OperationResult) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(r.Record())
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *OperationResult) UnmarshalJSON(data []byte) error {
	var rec Object
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	opRec, _ := rec["operation"].(Object)
	op, err := DecodeOperation(opRec)
	if err != nil {
		return fmt.Errorf("operation: %w", err)
	}

	inverse := Noop()
	if invRec, ok := rec["inverse"].(Object); ok {
		if inverse, err = DecodeOperation(invRec); err != nil {
			return fmt.Errorf("inverse: %w", err)
		}
	}

	ts, _ := rec["timestamp"].(Int)
	user, _ := rec["user_id"].(String)
	*r = OperationResult{
		Operation: op,
		Inverse:   inverse,
		Timestamp: int64(ts),
		UserID:    string(user),
	}
	return nil
}
