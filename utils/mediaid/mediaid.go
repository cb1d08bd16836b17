package mediaid

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Prefixes for the identifiers minted by the service.
const (
	PrefixMedia = "med"
	PrefixAlbum = "alb"
	PrefixBatch = "bat"
)

var (
	entropyMu   sync.Mutex
	entropyOnce sync.Once
	entropy     *ulid.MonotonicEntropy
)

func newEntropy() *ulid.MonotonicEntropy {
	entropyOnce.Do(func() {
		source := rand.NewSource(time.Now().UnixNano())
		entropy = ulid.Monotonic(rand.New(source), 0)
	})
	return entropy
}

// New returns a "<prefix>_<ulid>" identifier.
func New(prefix string) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), newEntropy())
	entropyMu.Unlock()
	return prefix + "_" + strings.ToLower(id.String())
}

// NewMedia returns a media item id.
func NewMedia() string { return New(PrefixMedia) }

// NewAlbum returns an album (group) id.
func NewAlbum() string { return New(PrefixAlbum) }

// NewBatch returns an upload batch id.
func NewBatch() string { return New(PrefixBatch) }

// IsValid reports whether the string is a ULID carrying the given prefix.
func IsValid(prefix, value string) bool {
	if !strings.HasPrefix(value, prefix+"_") {
		return false
	}
	_, err := Parse(value)
	return err == nil
}

// Parse strips the prefix and returns the ULID.
func Parse(value string) (ulid.ULID, error) {
	value = strings.TrimSpace(value)
	if idx := strings.IndexByte(value, '_'); idx >= 0 {
		value = value[idx+1:]
	}
	return ulid.Parse(value)
}
