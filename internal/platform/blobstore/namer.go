package blobstore

import (
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Namer issues storage identifiers for accepted uploads. An identifier is
// <field>-<unix millis>-<128 random bits in hex>[.<ext>]. The time component
// never goes backwards within one Namer, and the random component makes two
// names issued in the same millisecond collide only with negligible
// probability.
type Namer struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewNamer returns a Namer reading the wall clock.
func NewNamer() *Namer {
	return &Namer{now: time.Now}
}

// Name returns a fresh identifier for a file submitted under field with the
// given client-side name. The original extension is preserved so the content
// type can be inferred later.
func (n *Namer) Name(field, originalName string) string {
	ms := n.tick()
	rnd := uuid.New()

	var b strings.Builder
	b.WriteString(sanitizeField(field))
	b.WriteByte('-')
	b.WriteString(strconv.FormatInt(ms, 10))
	b.WriteByte('-')
	b.WriteString(hex.EncodeToString(rnd[:]))
	if ext := Extension(originalName); ext != "" {
		b.WriteByte('.')
		b.WriteString(sanitizeField(ext))
	}
	return b.String()
}

func (n *Namer) tick() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	ms := n.now().UnixMilli()
	if ms < n.last {
		ms = n.last
	}
	n.last = ms
	return ms
}

func sanitizeField(s string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, s)
	if clean == "" {
		return "file"
	}
	return clean
}
