package dataset

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/echolab/voicepair/pkg/audio"
	"github.com/syndtr/goleveldb/leveldb"
	"gorgonia.org/tensor"
)

// Cache stores transformed feature maps in leveldb so that epochs after the
// first skip audio decoding entirely. Entries are keyed by file path and
// modification time, so touching a wav file invalidates its entry.
type Cache struct {
	db *leveldb.DB
}

func OpenCache(path string) (*Cache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open feature cache %s: %v", path, err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) key(path string) ([]byte, bool) {
	s, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	return fmt.Appendf([]byte{}, "%s|%d", path, s.ModTime().UnixNano()), true
}

func (c *Cache) Get(path string) (*tensor.Dense, bool) {
	key, ok := c.key(path)
	if !ok {
		return nil, false
	}
	b, err := c.db.Get(key, nil)
	if err != nil {
		return nil, false
	}
	if len(b) != 8*audio.MelBands*audio.TimeFrames {
		return nil, false
	}
	backing := make([]float64, audio.MelBands*audio.TimeFrames)
	for i := range backing {
		backing[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return tensor.New(
		tensor.WithShape(audio.MelBands, audio.TimeFrames),
		tensor.WithBacking(backing)), true
}

func (c *Cache) Put(path string, m *tensor.Dense) error {
	key, ok := c.key(path)
	if !ok {
		return fmt.Errorf("failed to stat %s", path)
	}
	data := m.Data().([]float64)
	b := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return c.db.Put(key, b, nil)
}
