package pipeline

import (
	"crypto/sha256"
	"sync"

	"github.com/jwulff/incision/internal/audio"
)

type cacheKey struct {
	lyrics string
	audio  [sha256.Size]byte
}

// alignCache keeps the last successful alignment so a run that failed in
// scoring can be retried without aligning again.
type alignCache struct {
	mu    sync.Mutex
	key   cacheKey
	words []AlignedWord
}

func keyFor(lyrics string, src audio.Source) cacheKey {
	return cacheKey{lyrics: lyrics, audio: sha256.Sum256(src.Data)}
}

func (c *alignCache) get(k cacheKey) ([]AlignedWord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.words == nil || c.key != k {
		return nil, false
	}
	return append([]AlignedWord(nil), c.words...), true
}

func (c *alignCache) put(k cacheKey, words []AlignedWord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = k
	c.words = append([]AlignedWord(nil), words...)
}
