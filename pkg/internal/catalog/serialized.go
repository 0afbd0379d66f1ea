package catalog

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/yeisme/arca/pkg/internal/errs"
	"github.com/yeisme/arca/pkg/internal/model"
)

// Serialized 按指纹与远端 ID 对写操作加锁，并在锁内复查是否已存在.
// 本地扫描与远端同步并发运行时，同一键的写入因此被串行化，不会重复插入.
type Serialized struct {
	Catalog

	locks keyLocks
}

// NewSerialized 包装任意 Catalog.
func NewSerialized(c Catalog) *Serialized {
	return &Serialized{Catalog: c, locks: keyLocks{m: map[string]*keyLock{}}}
}

func (s *Serialized) Insert(ctx context.Context, r *model.FileRecord) error {
	unlock := s.locks.lock(recordKeys(r))
	defer unlock()

	if err := s.recheck(ctx, r); err != nil {
		return err
	}

	return s.Catalog.Insert(ctx, r)
}

func (s *Serialized) InsertBatch(ctx context.Context, rs []*model.FileRecord) error {
	var keys []string
	for _, r := range rs {
		keys = append(keys, recordKeys(r)...)
	}

	unlock := s.locks.lock(keys)
	defer unlock()

	for _, r := range rs {
		if err := s.recheck(ctx, r); err != nil {
			return err
		}
	}

	return s.Catalog.InsertBatch(ctx, rs)
}

func (s *Serialized) recheck(ctx context.Context, r *model.FileRecord) error {
	if ok, err := Exists(ctx, s.Catalog, r.Fingerprint); err != nil {
		return err
	} else if ok {
		return errs.E(errs.KindCatalog, "insert", r.Fingerprint, ErrDuplicate)
	}

	if key := r.RemoteKey(); key != "" {
		_, err := s.Catalog.FindByRemoteID(ctx, key)
		if err == nil {
			return errs.E(errs.KindCatalog, "insert", key, ErrDuplicate)
		}

		if !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	return nil
}

func recordKeys(r *model.FileRecord) []string {
	keys := []string{"fp:" + r.Fingerprint}
	if key := r.RemoteKey(); key != "" {
		keys = append(keys, "rid:"+key)
	}

	return keys
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// keyLocks 按键分配互斥锁，无引用时回收.
type keyLocks struct {
	mu sync.Mutex
	m  map[string]*keyLock
}

// lock 按排序后的顺序获取全部键的锁，返回释放函数.
func (k *keyLocks) lock(keys []string) func() {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	held := make([]*keyLock, 0, len(keys))

	for _, key := range keys {
		k.mu.Lock()

		l, ok := k.m[key]
		if !ok {
			l = &keyLock{}
			k.m[key] = l
		}

		l.refs++
		k.mu.Unlock()

		l.mu.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()

			k.mu.Lock()

			held[i].refs--
			if held[i].refs == 0 {
				delete(k.m, keys[i])
			}

			k.mu.Unlock()
		}
	}
}
