package engine

import (
	"fmt"

	"github.com/rowbound/rowbound/internal/value"
)

// SlotKind says where a parameter slot's values come from.
type SlotKind string

const (
	// SlotData binds the slot from the active data rows, one value per row.
	SlotData SlotKind = "data"
	// SlotFixed binds the slot from a single deterministic provider,
	// independent of rows.
	SlotFixed SlotKind = "fixed"
)

// Provider supplies the single value of a fixed slot. It must be
// deterministic; it may be called once per plan build.
type Provider func() value.Value

// Slot is one declared formal parameter of a test case. Slots are declared
// statically and processed in declaration order, which is what keeps plan
// index i meaning "row i" across every slot.
type Slot struct {
	Name     string
	Kind     SlotKind
	Provider Provider
}

// DataSlot declares a row-bound slot.
func DataSlot(name string) Slot {
	return Slot{Name: name, Kind: SlotData}
}

// FixedSlot declares a fixed slot backed by a provider.
func FixedSlot(name string, p Provider) Slot {
	return Slot{Name: name, Kind: SlotFixed, Provider: p}
}

// FixedValue declares a fixed slot bound to a constant.
func FixedValue(name string, v value.Value) Slot {
	return FixedSlot(name, func() value.Value { return v })
}

// validateSlots rejects slot declarations that cannot produce a coherent
// plan: empty or duplicate names, fixed slots without a provider, unknown
// kinds. These are configuration errors, raised before any row runs.
func validateSlots(slots []Slot) error {
	seen := make(map[string]bool, len(slots))
	for i, slot := range slots {
		if slot.Name == "" {
			return fmt.Errorf("slot %d: empty name", i)
		}
		if seen[slot.Name] {
			return fmt.Errorf("slot %d: duplicate name %q", i, slot.Name)
		}
		seen[slot.Name] = true

		switch slot.Kind {
		case SlotData:
		case SlotFixed:
			if slot.Provider == nil {
				return fmt.Errorf("slot %q: fixed slot has no provider", slot.Name)
			}
		default:
			return fmt.Errorf("slot %q: unknown kind %q", slot.Name, slot.Kind)
		}
	}
	return nil
}
