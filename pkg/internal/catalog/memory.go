package catalog

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/yeisme/arca/pkg/internal/errs"
	"github.com/yeisme/arca/pkg/internal/model"
)

// Memory 内存目录，用于测试与演练模式.
type Memory struct {
	mu       sync.RWMutex
	nextID   uint
	byID     map[uint]*model.FileRecord
	byFP     map[string]uint
	byRemote map[string]uint
}

// NewMemory 创建空的内存目录.
func NewMemory() *Memory {
	return &Memory{
		byID:     map[uint]*model.FileRecord{},
		byFP:     map[string]uint{},
		byRemote: map[string]uint{},
	}
}

// Load 批量载入已有记录，保留其 ID.
func (m *Memory) Load(records []model.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range records {
		r := records[i].Clone()
		if r.ID == 0 {
			m.nextID++
			r.ID = m.nextID
		}

		if err := m.checkLocked(r, nil); err != nil {
			return err
		}

		m.putLocked(r)
		m.nextID = max(m.nextID, r.ID)
	}

	return nil
}

func (m *Memory) FindByFingerprint(_ context.Context, fp string) (*model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byFP[fp]
	if !ok {
		return nil, ErrNotFound
	}

	return m.byID[id].Clone(), nil
}

func (m *Memory) FindByRemoteID(_ context.Context, remoteID string) (*model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byRemote[remoteID]
	if !ok {
		return nil, ErrNotFound
	}

	return m.byID[id].Clone(), nil
}

func (m *Memory) Insert(ctx context.Context, r *model.FileRecord) error {
	return m.InsertBatch(ctx, []*model.FileRecord{r})
}

func (m *Memory) InsertBatch(_ context.Context, rs []*model.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 先整体校验，保证全有或全无
	pending := map[string]struct{}{}
	for _, r := range rs {
		if err := m.checkLocked(r, pending); err != nil {
			return err
		}
	}

	for _, r := range rs {
		m.nextID++
		r.ID = m.nextID
		r.Tags = model.NormalizeTags(r.Tags)
		m.putLocked(r.Clone())
	}

	return nil
}

func (m *Memory) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.byID[id]
	if !ok {
		return errs.E(errs.KindCatalog, "delete", fmt.Sprint(id), ErrNotFound)
	}

	delete(m.byID, id)
	delete(m.byFP, r.Fingerprint)

	if key := r.RemoteKey(); key != "" {
		delete(m.byRemote, key)
	}

	return nil
}

func (m *Memory) ListRemoteOrigin(_ context.Context) ([]model.FileRecord, error) {
	return m.list(func(r *model.FileRecord) bool { return r.Origin == model.OriginRemote }), nil
}

func (m *Memory) ListFingerprints(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fps := make([]string, 0, len(m.byFP))
	for fp := range m.byFP {
		fps = append(fps, fp)
	}

	slices.Sort(fps)

	return fps, nil
}

func (m *Memory) List(_ context.Context) ([]model.FileRecord, error) {
	return m.list(func(*model.FileRecord) bool { return true }), nil
}

// Len 返回记录数.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.byID)
}

func (m *Memory) list(keep func(*model.FileRecord) bool) []model.FileRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.FileRecord, 0, len(m.byID))
	for _, r := range m.byID {
		if keep(r) {
			out = append(out, *r.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// checkLocked 校验唯一约束；pending 收集同批次内已占用的键.
func (m *Memory) checkLocked(r *model.FileRecord, pending map[string]struct{}) error {
	if r.Fingerprint == "" {
		return errs.E(errs.KindCatalog, "insert", r.RelativePath, fmt.Errorf("empty fingerprint"))
	}

	keys := []string{"fp:" + r.Fingerprint}
	if _, ok := m.byFP[r.Fingerprint]; ok {
		return errs.E(errs.KindCatalog, "insert", r.Fingerprint, ErrDuplicate)
	}

	if key := r.RemoteKey(); key != "" {
		if _, ok := m.byRemote[key]; ok {
			return errs.E(errs.KindCatalog, "insert", key, ErrDuplicate)
		}

		keys = append(keys, "rid:"+key)
	}

	if pending == nil {
		return nil
	}

	for _, k := range keys {
		if _, ok := pending[k]; ok {
			return errs.E(errs.KindCatalog, "insert", k, ErrDuplicate)
		}

		pending[k] = struct{}{}
	}

	return nil
}

func (m *Memory) putLocked(r *model.FileRecord) {
	m.byID[r.ID] = r
	m.byFP[r.Fingerprint] = r.ID

	if key := r.RemoteKey(); key != "" {
		m.byRemote[key] = r.ID
	}
}
