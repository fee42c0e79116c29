package vm

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Global environment snapshots
// ---------------------------------------------------------------------------
//
// Persistent script state (episode variables, quest counters) lives in the
// global environment as Numbers and Strings. Snapshots capture exactly
// that: Nil, Number, and String globals. Closures, native closures, and
// userdata are code or host handles, not state, and are skipped.

// cborEncMode uses canonical options for deterministic snapshots.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

const snapshotVersion = 1

type snapshotEntry struct {
	Name string  `cbor:"1,keyasint"`
	Kind uint8   `cbor:"2,keyasint"`
	Num  float64 `cbor:"3,keyasint,omitempty"`
	Str  string  `cbor:"4,keyasint,omitempty"`
}

type snapshot struct {
	Version uint32          `cbor:"1,keyasint"`
	Entries []snapshotEntry `cbor:"2,keyasint"`
}

// SaveGlobals serializes the serializable part of the global environment to
// canonical CBOR. Entries are sorted by name so identical environments
// produce identical bytes.
func (m *VM) SaveGlobals() ([]byte, error) {
	s := snapshot{Version: snapshotVersion}
	for name, v := range m.Globals {
		switch v.Kind() {
		case KindNil:
			s.Entries = append(s.Entries, snapshotEntry{Name: name, Kind: uint8(KindNil)})
		case KindNumber:
			s.Entries = append(s.Entries, snapshotEntry{Name: name, Kind: uint8(KindNumber), Num: v.num})
		case KindString:
			s.Entries = append(s.Entries, snapshotEntry{Name: name, Kind: uint8(KindString), Str: v.str})
		}
	}
	sort.Slice(s.Entries, func(i, j int) bool {
		return s.Entries[i].Name < s.Entries[j].Name
	})
	data, err := cborEncMode.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("vm: marshal globals snapshot: %w", err)
	}
	return data, nil
}

// RestoreGlobals merges a snapshot into the global environment. Existing
// globals not named in the snapshot are left alone.
func (m *VM) RestoreGlobals(data []byte) error {
	var s snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("vm: unmarshal globals snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return fmt.Errorf("vm: globals snapshot version %d, want %d", s.Version, snapshotVersion)
	}
	for _, e := range s.Entries {
		switch Kind(e.Kind) {
		case KindNil:
			m.Globals[e.Name] = Nil
		case KindNumber:
			m.Globals[e.Name] = FromNumber(e.Num)
		case KindString:
			m.Globals[e.Name] = FromString(e.Str)
		default:
			return fmt.Errorf("vm: globals snapshot entry %q has kind %d", e.Name, e.Kind)
		}
	}
	return nil
}
