package index_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/arca/pkg/internal/errs"
	"github.com/yeisme/arca/pkg/internal/index"
	"github.com/yeisme/arca/pkg/internal/model"
	"github.com/yeisme/arca/pkg/queue"
)

// recorder 记录收到的请求.
type recorder struct {
	mu   sync.Mutex
	ids  []string
	meta []index.Metadata
	err  error
}

func (r *recorder) Index(_ context.Context, id, _ string, meta index.Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ids = append(r.ids, id)
	r.meta = append(r.meta, meta)

	return r.err
}

// TestBleveIndexAndSearch 测试西班牙语词干检索与关键字字段.
func TestBleveIndexAndSearch(t *testing.T) {
	ctx := context.Background()

	b, err := index.NewMemBleve()
	require.NoError(t, err)

	defer b.Close()

	require.NoError(t, b.Index(ctx, "1", "La gracia de Dios en la teología sistemática",
		index.Metadata{Title: "Gracia", Category: "Seminario", Tags: []string{"sistemática", "teología"}}))
	require.NoError(t, b.Index(ctx, "2", "Manualidades para niños de la clase bíblica",
		index.Metadata{Title: "Manualidades", Category: "Escuela Dominical"}))

	n, err := b.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	hits, err := b.Search(ctx, "teologías", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "1", hits[0].RecordID)
	assert.Equal(t, "Gracia", hits[0].Title)

	hits, err = b.Search(ctx, `category:"Escuela Dominical"`, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "2", hits[0].RecordID)

	require.NoError(t, b.Delete("2"))

	n, _ = b.Count()
	assert.Equal(t, uint64(1), n)

	_, err = b.Search(ctx, "  ", 10)
	assert.Error(t, err)
}

// TestOpenBlevePersists 测试磁盘索引重新打开后仍在.
func TestOpenBlevePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "idx.bleve")

	b, err := index.OpenBleve(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Index(context.Background(), "9", "himnario", index.Metadata{}))
	require.NoError(t, b.Close())

	b, err = index.OpenBleve(path, zerolog.Nop())
	require.NoError(t, err)

	defer b.Close()

	n, err := b.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

// TestMultiContinuesAfterFailure 测试一个下游失败不影响其余下游.
func TestMultiContinuesAfterFailure(t *testing.T) {
	bad := &recorder{err: errors.New("down")}
	good := &recorder{}

	err := index.Combine(bad, nil, good).Index(context.Background(), "1", "x", index.Metadata{})

	assert.ErrorIs(t, err, errs.ErrIndexSink)
	assert.Equal(t, []string{"1"}, good.ids)
}

// TestCombine 测试合并的退化情况.
func TestCombine(t *testing.T) {
	assert.Equal(t, index.Nop{}, index.Combine())

	r := &recorder{}
	assert.Same(t, r, index.Combine(nil, r))
}

// TestMetadataOf 测试从记录提取元数据.
func TestMetadataOf(t *testing.T) {
	r := &model.FileRecord{Title: "t", Category: "Música", Tags: []string{"coros"}, Format: "pdf", Origin: model.OriginLocal}

	meta := index.MetadataOf(r)
	assert.Equal(t, "Música", meta.Category)
	assert.Equal(t, []string{"coros"}, meta.Tags)
	assert.Equal(t, string(model.OriginLocal), meta.Origin)

	meta.Tags[0] = "changed"
	assert.Equal(t, "coros", r.Tags[0])
}

// TestQueueToConsumer 测试索引请求经队列送达消费者.
func TestQueueToConsumer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	defer ps.Close()

	msgs, err := ps.Subscribe(ctx, queue.TopicIndexRequested)
	require.NoError(t, err)

	rec := &recorder{}
	done := make(chan struct{})

	go func() {
		defer close(done)
		index.Consume(ctx, msgs, rec, zerolog.Nop())
	}()

	sink := index.NewQueue(ps, "")
	require.NoError(t, sink.Index(ctx, "42", "texto", index.Metadata{Category: "Música", Tags: []string{"coros"}}))

	assert.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()

		return len(rec.ids) == 1
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, "42", rec.ids[0])
	assert.Equal(t, "Música", rec.meta[0].Category)
}

// TestQueueCancelled 测试取消后不再发布.
func TestQueueCancelled(t *testing.T) {
	ps := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer ps.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := index.NewQueue(ps, "t").Index(ctx, "1", "x", index.Metadata{})
	assert.ErrorIs(t, err, context.Canceled)
}
