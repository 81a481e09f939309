// Package control exposes pause, resume, budget updates, status and audit
// over gRPC. Messages travel as google.protobuf.Struct so no generated code
// is needed on either side.
package control

import (
	"encoding/json"
	"fmt"
	"sort"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rafters-studio/motion-coordinator/internal/engine"
	"github.com/rafters-studio/motion-coordinator/internal/motion"
)

// #region status
// Status is the wire view of an engine snapshot.
type Status struct {
	Paused              bool          `json:"paused"`
	Level               string        `json:"level"`
	AttentionOwner      string        `json:"attention_owner,omitempty"`
	FocusStack          []string      `json:"focus_stack,omitempty"`
	ArbiterLoad         int           `json:"arbiter_load"`
	ArbiterLimit        int           `json:"arbiter_limit"`
	ControllerLoad      int           `json:"controller_load"`
	LedgerLoad          int           `json:"ledger_load"`
	Active              []string      `json:"active,omitempty"`
	Queued              []string      `json:"queued,omitempty"`
	OverCap             int           `json:"over_cap,omitempty"`
	MotionPriorityOwner string        `json:"motion_priority_owner,omitempty"`
	Budget              motion.Budget `json:"budget"`
}

// StatusFromSnapshot flattens s. Active ids are sorted; queued ids keep
// queue order.
func StatusFromSnapshot(s engine.Snapshot) Status {
	st := Status{
		Paused:              s.Controller.Paused,
		Level:               string(s.Level),
		AttentionOwner:      s.Arbiter.AttentionOwner,
		FocusStack:          s.Arbiter.FocusStack,
		ArbiterLoad:         s.Arbiter.CurrentLoad,
		ArbiterLimit:        s.Arbiter.BudgetLimit,
		ControllerLoad:      s.Controller.CurrentLoad,
		LedgerLoad:          s.LedgerLoad,
		OverCap:             s.Controller.OverCap,
		MotionPriorityOwner: s.Controller.MotionPriorityOwner,
		Budget:              s.Controller.Budget,
	}
	for id := range s.Controller.Active {
		st.Active = append(st.Active, id)
	}
	sort.Strings(st.Active)
	for _, q := range s.Controller.Queue {
		st.Queued = append(st.Queued, q.ID)
	}
	return st
}

// #endregion status

// #region struct-codec
// toStruct converts a JSON-tagged value to a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes a protobuf Struct into a JSON-tagged value.
func fromStruct(s *structpb.Struct, v any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

// #endregion struct-codec
