// Copyright 2014-2016 Fraunhofer Institute for Applied Information Technology FIT

package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDB storage
type LevelDBStorage struct {
	db *leveldb.DB
	wg sync.WaitGroup
}

func NewLevelDBStorage(dsn string, opts *opt.Options) (Storage, error) {
	url, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}

	// Open the database file
	db, err := leveldb.OpenFile(url.Path, opts)
	if err != nil {
		return nil, err
	}

	return &LevelDBStorage{db: db}, nil
}

// CRUD
func (s *LevelDBStorage) add(id string, td ThingDescription) error {
	if id == "" {
		return fmt.Errorf("ID is not set")
	}

	bytes, err := json.Marshal(td)
	if err != nil {
		return err
	}

	found, err := s.db.Has([]byte(id), nil)
	if err != nil {
		return err
	}
	if found {
		return &ConflictError{id + " is not unique"}
	}

	return s.db.Put([]byte(id), bytes, nil)
}

func (s *LevelDBStorage) get(id string) (ThingDescription, error) {
	bytes, err := s.db.Get([]byte(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, &NotFoundError{id + " is not found"}
	} else if err != nil {
		return nil, err
	}

	var td ThingDescription
	err = json.Unmarshal(bytes, &td)
	if err != nil {
		return nil, err
	}

	return td, nil
}

func (s *LevelDBStorage) update(id string, td ThingDescription) error {
	bytes, err := json.Marshal(td)
	if err != nil {
		return err
	}

	found, err := s.db.Has([]byte(id), nil)
	if err != nil {
		return err
	}
	if !found {
		return &NotFoundError{id + " is not found"}
	}

	return s.db.Put([]byte(id), bytes, nil)
}

func (s *LevelDBStorage) delete(id string) error {
	found, err := s.db.Has([]byte(id), nil)
	if err != nil {
		return err
	}
	if !found {
		return &NotFoundError{id + " is not found"}
	}

	return s.db.Delete([]byte(id), nil)
}

func (s *LevelDBStorage) list(page int, perPage int) ([]ThingDescription, int, error) {
	total, err := s.total()
	if err != nil {
		return nil, 0, err
	}
	offset, limit, err := GetPagingAttr(total, page, perPage, MaxPerPage)
	if err != nil {
		return nil, 0, &BadRequestError{fmt.Sprintf("Unable to paginate: %s", err)}
	}

	tds := make([]ThingDescription, 0, limit)
	s.wg.Add(1)
	defer s.wg.Done()
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	for i := 0; iter.Next() && len(tds) < limit; i++ {
		if i < offset {
			continue
		}
		var td ThingDescription
		err = json.Unmarshal(iter.Value(), &td)
		if err != nil {
			return nil, 0, err
		}
		tds = append(tds, td)
	}
	if err := iter.Error(); err != nil {
		return nil, 0, err
	}

	return tds, total, nil
}

func (s *LevelDBStorage) listAllBytes() ([]byte, error) {
	s.wg.Add(1)
	defer s.wg.Done()
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	var buffer bytes.Buffer
	buffer.WriteString("[")
	separator := byte(',')
	first := true
	for iter.Next() {
		if first {
			first = false
		} else {
			buffer.WriteByte(separator)
		}
		buffer.Write(iter.Value())
	}
	buffer.WriteString("]")

	if err := iter.Error(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func (s *LevelDBStorage) total() (int, error) {
	c := 0
	s.wg.Add(1)
	defer s.wg.Done()
	iter := s.db.NewIterator(nil, nil)
	for iter.Next() {
		c++
	}
	iter.Release()
	err := iter.Error()
	if err != nil {
		return 0, err
	}
	return c, nil
}

func (s *LevelDBStorage) iterator() <-chan ThingDescription {
	serviceIter := make(chan ThingDescription)

	s.wg.Add(1)
	go func() {
		defer close(serviceIter)
		defer s.wg.Done()

		iter := s.db.NewIterator(nil, nil)
		defer iter.Release()

		for iter.Next() {
			var td ThingDescription
			err := json.Unmarshal(iter.Value(), &td)
			if err != nil {
				logger.Errorf("LevelDB Error: %s", err)
				return
			}
			serviceIter <- td
		}

		err := iter.Error()
		if err != nil {
			logger.Errorf("LevelDB Error: %s", err)
		}
	}()

	return serviceIter
}

func (s *LevelDBStorage) Close() {
	s.wg.Wait()
	err := s.db.Close()
	if err != nil {
		logger.Errorf("Error closing storage: %s", err)
	}
	logger.Debug("Closed leveldb.")
}
