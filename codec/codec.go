// Package codec centralizes snapshot payload encoding.
//
// Memgo treats codec selection as a breaking-change boundary: persisted
// stores record the codec name in their container header, and a store is
// only decoded with the codec it was written with.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
//
// This is used for self-describing persistence formats that store the
// codec name in their header.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Default is the default codec used by the library.
//
// NOTE: This affects newly-created snapshots. Existing persisted files are
// self-describing and are opened by selecting the appropriate codec by name.
var Default Codec = GoJSON{}
