package businessflow

import (
	"math/rand"
	"sync"
	"time"

	"github.com/amirphl/Kaminari/models"
)

// Partitioner assigns subscribers to A/B segments with a uniformly random shuffle
type Partitioner struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPartitioner creates a partitioner; the same seed yields the same assignment
func NewPartitioner(seed int64) *Partitioner {
	return &Partitioner{rng: rand.New(rand.NewSource(seed))}
}

// NewTimeSeededPartitioner seeds from the clock
func NewTimeSeededPartitioner() *Partitioner {
	return NewPartitioner(time.Now().UnixNano())
}

// Split shuffles a copy of subs and cuts it at campaign.SplitIndex.
// Every subscriber lands in exactly one segment; the input is not modified.
func (p *Partitioner) Split(subs []*models.Subscriber, campaign *models.ABCampaign) (groupA, groupB []*models.Subscriber) {
	shuffled := make([]*models.Subscriber, len(subs))
	copy(shuffled, subs)

	p.mu.Lock()
	p.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	p.mu.Unlock()

	cut := campaign.SplitIndex(len(shuffled))
	return shuffled[:cut], shuffled[cut:]
}
