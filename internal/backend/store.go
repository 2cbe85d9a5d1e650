package backend

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/goccy/go-json"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/logging"
)

// Key layout:
//
//	e:<normalized dn>                      encoded entry
//	c:<normalized parent>\x00<normalized dn> child index
//	s:changenumber                         change number sequence
const (
	entryPrefix = "e:"
	childPrefix = "c:"
	changeSeq   = "s:changenumber"
)

var errNotFound = errors.New("backend: entry not found")

func entryKey(norm string) []byte {
	return []byte(entryPrefix + norm)
}

func childKey(parent, child string) []byte {
	return []byte(childPrefix + parent + "\x00" + child)
}

func childrenPrefix(parent string) []byte {
	return []byte(childPrefix + parent + "\x00")
}

// store keeps entries in badger, encoded with go-json.
type store struct {
	db  *badger.DB
	seq *badger.Sequence
}

func openStore(cfg *Config, logger logging.Logger) (*store, error) {
	opts := badger.DefaultOptions(cfg.DataDir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(&badgerLogger{logger: logger.Named("badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrStorage, err)
	}
	seq, err := db.GetSequence([]byte(changeSeq), 100)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: change number sequence: %v", ErrStorage, err)
	}
	return &store{db: db, seq: seq}, nil
}

func (s *store) close() error {
	relErr := s.seq.Release()
	if err := s.db.Close(); err != nil {
		return err
	}
	return relErr
}

// nextChangeNumber returns the next change number, starting at 1.
func (s *store) nextChangeNumber() (int64, error) {
	n, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("%w: change number: %v", ErrStorage, err)
	}
	return int64(n) + 1, nil
}

func getEntry(txn *badger.Txn, norm string) (*ldap.Entry, error) {
	item, err := txn.Get(entryKey(norm))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	entry := &ldap.Entry{}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrStorage, norm, err)
	}
	return entry, nil
}

func exists(txn *badger.Txn, norm string) (bool, error) {
	_, err := txn.Get(entryKey(norm))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
}

// putEntry stores entry under norm. parent is empty for suffix entries, which
// are not indexed as anybody's child.
func putEntry(txn *badger.Txn, norm, parent string, entry *ldap.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStorage, norm, err)
	}
	if err := txn.Set(entryKey(norm), data); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if parent != "" {
		if err := txn.Set(childKey(parent, norm), nil); err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}
	return nil
}

func deleteEntry(txn *badger.Txn, norm, parent string) error {
	if err := txn.Delete(entryKey(norm)); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if parent != "" {
		if err := txn.Delete(childKey(parent, norm)); err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
	}
	return nil
}

func hasChildren(txn *badger.Txn, norm string) bool {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = childrenPrefix(norm)

	it := txn.NewIterator(opts)
	defer it.Close()

	it.Rewind()
	return it.Valid()
}

// scan calls fn for every stored entry in key order until fn returns false.
func scan(txn *badger.Txn, fn func(*ldap.Entry) bool) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 100
	opts.Prefix = []byte(entryPrefix)

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		entry := &ldap.Entry{}
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, entry)
		})
		if err != nil {
			return fmt.Errorf("%w: decode %s: %v", ErrStorage, it.Item().Key(), err)
		}
		if !fn(entry) {
			return nil
		}
	}
	return nil
}

// badgerLogger forwards badger's log output.
type badgerLogger struct {
	logger logging.Logger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(f, v...))
}

func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(f, v...))
}
