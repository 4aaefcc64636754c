package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID stamped with the wall clock. Use it for identifiers
// that only need to be unique, such as journal run IDs.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return mustNew(time.Now().UTC(), mono)
}

// Generator mints ULIDs from a fixed seed and caller-supplied timestamps,
// so replaying the same inputs yields the same IDs.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// DefaultSeed is used when a run does not choose its own.
const DefaultSeed int64 = 1

// NewGenerator returns a generator whose entropy is derived from seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)}
}

// At returns the next ULID for timestamp t. Times before the Unix epoch
// are clamped to it.
func (g *Generator) At(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t.Before(time.Unix(0, 0)) {
		t = time.Unix(0, 0)
	}
	return mustNew(t.UTC(), g.entropy)
}

func mustNew(t time.Time, entropy io.Reader) string {
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		// Only reachable on entropy overflow within one millisecond or a
		// timestamp past year 10889.
		panic(err)
	}
	return id.String()
}
