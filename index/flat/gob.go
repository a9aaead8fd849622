package flat

import (
	"bytes"
	"encoding/gob"
)

// GobEncode method for Flat.
func (f *Flat) GobEncode() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)

	if err := encoder.Encode(f.dimension); err != nil {
		return nil, err
	}

	if err := encoder.Encode(f.vectors); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// GobDecode method for Flat.
func (f *Flat) GobDecode(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	decoder := gob.NewDecoder(bytes.NewBuffer(data))

	if err := decoder.Decode(&f.dimension); err != nil {
		return err
	}

	if err := decoder.Decode(&f.vectors); err != nil {
		return err
	}

	return nil
}
