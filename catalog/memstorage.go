// Copyright 2014-2016 Fraunhofer Institute for Applied Information Technology FIT

package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// In-memory storage. TDs are kept serialized, ordered by id like in LevelDB.
type MemoryStorage struct {
	sync.RWMutex
	data map[string][]byte
	ids  []string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		data: make(map[string][]byte),
	}
}

// CRUD
func (s *MemoryStorage) add(id string, td ThingDescription) error {
	if id == "" {
		return fmt.Errorf("ID is not set")
	}
	b, err := json.Marshal(td)
	if err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()

	if _, found := s.data[id]; found {
		return &ConflictError{id + " is not unique"}
	}
	s.data[id] = b
	i := sort.SearchStrings(s.ids, id)
	s.ids = append(s.ids, "")
	copy(s.ids[i+1:], s.ids[i:])
	s.ids[i] = id
	return nil
}

func (s *MemoryStorage) get(id string) (ThingDescription, error) {
	s.RLock()
	b, found := s.data[id]
	s.RUnlock()
	if !found {
		return nil, &NotFoundError{id + " is not found"}
	}

	var td ThingDescription
	if err := json.Unmarshal(b, &td); err != nil {
		return nil, err
	}
	return td, nil
}

func (s *MemoryStorage) update(id string, td ThingDescription) error {
	b, err := json.Marshal(td)
	if err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()

	if _, found := s.data[id]; !found {
		return &NotFoundError{id + " is not found"}
	}
	s.data[id] = b
	return nil
}

func (s *MemoryStorage) delete(id string) error {
	s.Lock()
	defer s.Unlock()

	if _, found := s.data[id]; !found {
		return &NotFoundError{id + " is not found"}
	}
	delete(s.data, id)
	i := sort.SearchStrings(s.ids, id)
	s.ids = append(s.ids[:i], s.ids[i+1:]...)
	return nil
}

func (s *MemoryStorage) list(page int, perPage int) ([]ThingDescription, int, error) {
	s.RLock()
	defer s.RUnlock()

	total := len(s.ids)
	offset, limit, err := GetPagingAttr(total, page, perPage, MaxPerPage)
	if err != nil {
		return nil, 0, &BadRequestError{fmt.Sprintf("Unable to paginate: %s", err)}
	}

	tds := make([]ThingDescription, limit)
	for i := 0; i < limit; i++ {
		if err := json.Unmarshal(s.data[s.ids[offset+i]], &tds[i]); err != nil {
			return nil, 0, err
		}
	}
	return tds, total, nil
}

func (s *MemoryStorage) listAllBytes() ([]byte, error) {
	s.RLock()
	defer s.RUnlock()

	var buffer bytes.Buffer
	buffer.WriteString("[")
	for i, id := range s.ids {
		if i > 0 {
			buffer.WriteByte(',')
		}
		buffer.Write(s.data[id])
	}
	buffer.WriteString("]")
	return buffer.Bytes(), nil
}

func (s *MemoryStorage) total() (int, error) {
	s.RLock()
	defer s.RUnlock()
	return len(s.ids), nil
}

// iterator walks a snapshot of the storage
func (s *MemoryStorage) iterator() <-chan ThingDescription {
	s.RLock()
	snapshot := make([][]byte, 0, len(s.ids))
	for _, id := range s.ids {
		snapshot = append(snapshot, s.data[id])
	}
	s.RUnlock()

	iter := make(chan ThingDescription)
	go func() {
		defer close(iter)
		for _, b := range snapshot {
			var td ThingDescription
			if err := json.Unmarshal(b, &td); err != nil {
				logger.Errorf("Error decoding stored TD: %s", err)
				continue
			}
			iter <- td
		}
	}()
	return iter
}

func (s *MemoryStorage) Close() {}
