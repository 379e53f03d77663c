package mockserver

import (
	"sync"
)

// Interactions keeps registered interactions in registration order, duplicates included.
type Interactions struct {
	mu           sync.RWMutex
	interactions []*interaction
}

func (i *Interactions) Store(interaction *interaction) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.interactions = append(i.interactions, interaction)
}

func (i *Interactions) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.interactions = nil
}

func (i *Interactions) FindAll(path, method string) ([]*interaction, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var result []*interaction
	for _, interaction := range i.interactions {
		if interaction.Match(path, method) {
			result = append(result, interaction)
		}
	}
	return result, len(result) > 0
}

func (i *Interactions) All() []*interaction {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]*interaction(nil), i.interactions...)
}

func (i *Interactions) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.interactions)
}

func (i *Interactions) AllHaveRequests() bool {
	for _, interaction := range i.All() {
		if !interaction.HasRequests(1) {
			return false
		}
	}
	return true
}
