// Package regcache caches the hot register window of a context save image.
// Reading a stopped wave's state touches the same few hwreg and ttmp slots
// over and over; fronting the save memory with a small write-back cache
// turns those repeats into local copies. A Cache implements
// cwsr.BackingStore, so it drops in wherever a save record expects one.
package regcache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/wavedbg/cwsr"
)

// Config holds cache geometry.
type Config struct {
	// NumSets is the number of directory sets.
	NumSets int
	// NumWays is the associativity.
	NumWays int
	// LineSize in bytes.
	LineSize int
}

// DefaultConfig returns a geometry sized for one wave's hwreg, ttmp, and
// scalar blocks: 1 KiB in 64-byte lines.
func DefaultConfig() Config {
	return Config{
		NumSets:  8,
		NumWays:  2,
		LineSize: 64,
	}
}

// Option adjusts the cache configuration.
type Option func(*Config)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Config) { *c = cfg }
}

// WithLineSize sets the line size in bytes.
func WithLineSize(n int) Option {
	return func(c *Config) { c.LineSize = n }
}

// Statistics holds access counters.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// Cache is a write-back, write-allocate cache over a save image window.
type Cache struct {
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Line storage, indexed by (setID * NumWays + wayID)
	lines [][]byte

	stats Statistics

	backing cwsr.BackingStore
}

var _ cwsr.BackingStore = (*Cache)(nil)

// New creates a cache in front of backing.
func New(backing cwsr.BackingStore, opts ...Option) *Cache {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	total := config.NumSets * config.NumWays
	lines := make([][]byte, total)
	for i := range lines {
		lines[i] = make([]byte, config.LineSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			config.NumSets,
			config.NumWays,
			config.LineSize,
			akitacache.NewLRUVictimFinder(),
		),
		lines:   lines,
		backing: backing,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns the access counters.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears the access counters.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// lineIndex computes the index into the line storage for a block.
func (c *Cache) lineIndex(block *akitacache.Block) int {
	return block.SetID*c.config.NumWays + block.WayID
}

// Read implements cwsr.BackingStore. Accesses that span lines touch each
// line in turn.
func (c *Cache) Read(addr uint64, size int) []byte {
	c.stats.Reads++

	data := make([]byte, size)
	for done := 0; done < size; {
		line, offset := c.lookup(addr + uint64(done))
		n := copy(data[done:], line[offset:])
		done += n
	}
	return data
}

// Write implements cwsr.BackingStore. The written lines stay dirty until
// evicted or flushed.
func (c *Cache) Write(addr uint64, data []byte) {
	c.stats.Writes++

	for done := 0; done < len(data); {
		a := addr + uint64(done)
		lineAddr := a - a%uint64(c.config.LineSize)

		block := c.directory.Lookup(0, lineAddr)
		if block == nil || !block.IsValid {
			c.stats.Misses++
			block = c.fill(lineAddr)
		} else {
			c.stats.Hits++
		}
		c.directory.Visit(block)
		block.IsDirty = true

		line := c.lines[c.lineIndex(block)]
		n := copy(line[a%uint64(c.config.LineSize):], data[done:])
		done += n
	}
}

// lookup returns the line holding addr and the offset of addr inside it,
// fetching the line on a miss.
func (c *Cache) lookup(addr uint64) ([]byte, int) {
	lineAddr := addr - addr%uint64(c.config.LineSize)

	block := c.directory.Lookup(0, lineAddr)
	if block == nil || !block.IsValid {
		c.stats.Misses++
		block = c.fill(lineAddr)
	} else {
		c.stats.Hits++
	}
	c.directory.Visit(block)

	return c.lines[c.lineIndex(block)], int(addr % uint64(c.config.LineSize))
}

// fill allocates a line for lineAddr, writing back the victim if dirty.
func (c *Cache) fill(lineAddr uint64) *akitacache.Block {
	victim := c.directory.FindVictim(lineAddr)
	line := c.lines[c.lineIndex(victim)]

	if victim.IsValid {
		c.stats.Evictions++
		if victim.IsDirty {
			c.stats.Writebacks++
			c.backing.Write(victim.Tag, line)
		}
	}

	copy(line, c.backing.Read(lineAddr, c.config.LineSize))

	victim.Tag = lineAddr
	victim.IsValid = true
	victim.IsDirty = false
	return victim
}

// Flush writes back all dirty lines and invalidates everything. After a
// flush the backing store holds exactly what an uncached sequence of the
// same accesses would have left there.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty {
				c.stats.Writebacks++
				c.backing.Write(block.Tag, c.lines[c.lineIndex(block)])
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Invalidate drops the line holding addr without writing it back.
func (c *Cache) Invalidate(addr uint64) {
	lineAddr := addr - addr%uint64(c.config.LineSize)
	block := c.directory.Lookup(0, lineAddr)
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Reset invalidates all lines without writeback and clears the counters.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}
