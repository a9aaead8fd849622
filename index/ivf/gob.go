package ivf

import (
	"bytes"
	"encoding/gob"
	"math/rand"

	"github.com/RoaringBitmap/roaring/v2"
)

// GobEncode method for IVF. Posting lists use the roaring binary format
// inside the gob stream.
func (ix *IVF) GobEncode() ([]byte, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)

	if err := encoder.Encode(ix.dimension); err != nil {
		return nil, err
	}

	if err := encoder.Encode(ix.opts); err != nil {
		return nil, err
	}

	if err := encoder.Encode(ix.vectors); err != nil {
		return nil, err
	}

	if err := encoder.Encode(ix.trained); err != nil {
		return nil, err
	}

	if !ix.trained {
		return buf.Bytes(), nil
	}

	if err := encoder.Encode(ix.centroids); err != nil {
		return nil, err
	}

	postings := make([][]byte, len(ix.postings))
	for i, bm := range ix.postings {
		data, err := bm.ToBytes()
		if err != nil {
			return nil, err
		}
		postings[i] = data
	}
	if err := encoder.Encode(postings); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// GobDecode method for IVF.
func (ix *IVF) GobDecode(data []byte) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	decoder := gob.NewDecoder(bytes.NewBuffer(data))

	if err := decoder.Decode(&ix.dimension); err != nil {
		return err
	}

	if err := decoder.Decode(&ix.opts); err != nil {
		return err
	}

	if err := decoder.Decode(&ix.vectors); err != nil {
		return err
	}

	if err := decoder.Decode(&ix.trained); err != nil {
		return err
	}

	ix.rng = rand.New(rand.NewSource(ix.opts.Seed))

	if !ix.trained {
		ix.centroids = nil
		ix.postings = nil
		return nil
	}

	if err := decoder.Decode(&ix.centroids); err != nil {
		return err
	}

	var postings [][]byte
	if err := decoder.Decode(&postings); err != nil {
		return err
	}

	ix.postings = make([]*roaring.Bitmap, len(postings))
	for i, raw := range postings {
		bm := roaring.New()
		if err := bm.UnmarshalBinary(raw); err != nil {
			return err
		}
		ix.postings[i] = bm
	}

	return nil
}
