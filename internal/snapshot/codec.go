package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Raw holds a reading of a family this build does not model.
type Raw struct {
	Name Family
	Data json.RawMessage
}

func (r Raw) Family() Family { return r.Name }

func (r Raw) Equal(other Snapshot) bool {
	o, ok := other.(Raw)
	if !ok || o.Name != r.Name {
		return false
	}
	var a, b bytes.Buffer
	if json.Compact(&a, r.Data) != nil || json.Compact(&b, o.Data) != nil {
		return bytes.Equal(r.Data, o.Data)
	}
	return bytes.Equal(a.Bytes(), b.Bytes())
}

func (r Raw) Validate() error {
	if !json.Valid(r.Data) {
		return malformed(r.Name, "invalid json payload")
	}
	return nil
}

func (r Raw) MarshalJSON() ([]byte, error) {
	if len(r.Data) == 0 {
		return []byte("null"), nil
	}
	return r.Data, nil
}

// Encode serializes s for storage.
func Encode(s Snapshot) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", s.Family(), err)
	}
	return b, nil
}

// Decode rebuilds a snapshot of family f. Unknown families come back as Raw.
func Decode(f Family, data []byte) (Snapshot, error) {
	var (
		s   Snapshot
		err error
	)
	switch f {
	case FamilyLoadAvg:
		var v LoadAverage
		err = json.Unmarshal(data, &v)
		s = v
	case FamilyMemory:
		var v MemoryInfo
		err = json.Unmarshal(data, &v)
		s = v
	case FamilyDisk:
		var v DiskInfo
		err = json.Unmarshal(data, &v)
		s = v
	case FamilyIoWait:
		var v IoWait
		err = json.Unmarshal(data, &v)
		s = v
	case FamilyListenPorts:
		var v ListenPorts
		err = json.Unmarshal(data, &v)
		s = NewListenPorts(v.Entries...)
	default:
		s = Raw{Name: f, Data: append(json.RawMessage(nil), data...)}
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f, err)
	}
	return s, nil
}
