package ctxtypes

import (
	"encoding/json"
	"fmt"
)

// OperationKind tags the variant of an Operation, mirroring the
// discriminator-then-dispatch idiom used elsewhere in this codebase for
// heterogeneous JSON payloads.
type OperationKind string

const (
	OpCreate       OperationKind = "create"
	OpUpdate       OperationKind = "update"
	OpDelete       OperationKind = "delete"
	OpStatusChange OperationKind = "status-change"
)

// UpdateChanges is the sparse patch carried by an Update operation. All
// fields are optional; unknown fields on the wire are ignored by JSON
// decoding and are not rejected anywhere.
type UpdateChanges struct {
	Content *string     `json:"content,omitempty"`
	Status  *NodeStatus `json:"status,omitempty"`
}

// Operation is a single mutation inside a proposal's ordered batch. Only
// the fields relevant to Kind are populated; operations run in ascending
// Order at apply time, and equal Order values keep their batch order.
type Operation struct {
	Kind OperationKind `json:"kind"`
	Order int          `json:"order"`

	// create
	Node *Node `json:"node,omitempty"`

	// update / delete / status-change all reference an existing node
	NodeID *NodeID `json:"nodeId,omitempty"`

	// update
	Changes *UpdateChanges `json:"changes,omitempty"`

	// delete
	Reason *string `json:"reason,omitempty"`

	// status-change
	NewStatus *NodeStatus `json:"newStatus,omitempty"`
	OldStatus *NodeStatus `json:"oldStatus,omitempty"`
}

// operationWire is the on-the-wire shape: a discriminated union keyed by
// "kind", with every variant's fields flattened into one object.
type operationWire struct {
	Kind      OperationKind  `json:"kind"`
	Order     int            `json:"order"`
	Node      *Node          `json:"node,omitempty"`
	NodeID    *NodeID        `json:"nodeId,omitempty"`
	Changes   *UpdateChanges `json:"changes,omitempty"`
	Reason    *string        `json:"reason,omitempty"`
	NewStatus *NodeStatus    `json:"newStatus,omitempty"`
	OldStatus *NodeStatus    `json:"oldStatus,omitempty"`
}

func (o Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal(operationWire{
		Kind: o.Kind, Order: o.Order, Node: o.Node, NodeID: o.NodeID,
		Changes: o.Changes, Reason: o.Reason, NewStatus: o.NewStatus, OldStatus: o.OldStatus,
	})
}

func (o *Operation) UnmarshalJSON(data []byte) error {
	var w operationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Kind {
	case OpCreate:
		if w.Node == nil {
			return fmt.Errorf("ctxtypes: create operation missing node")
		}
	case OpUpdate:
		if w.NodeID == nil {
			return fmt.Errorf("ctxtypes: update operation missing nodeId")
		}
	case OpDelete:
		if w.NodeID == nil {
			return fmt.Errorf("ctxtypes: delete operation missing nodeId")
		}
	case OpStatusChange:
		if w.NodeID == nil || w.NewStatus == nil {
			return fmt.Errorf("ctxtypes: status-change operation missing nodeId or newStatus")
		}
	default:
		return fmt.Errorf("ctxtypes: unknown operation kind %q", w.Kind)
	}
	*o = Operation{
		Kind: w.Kind, Order: w.Order, Node: w.Node, NodeID: w.NodeID,
		Changes: w.Changes, Reason: w.Reason, NewStatus: w.NewStatus, OldStatus: w.OldStatus,
	}
	return nil
}
