package contract

import (
	"context"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
)

// IEngagementCache defines the local projection of subject engagement state.
type IEngagementCache interface {
	// Detail slot
	Get(subjectID string) (entity.CacheEntry, bool)
	Put(entry entity.CacheEntry) entity.CacheEntry
	Update(subjectID string, fn func(entry *entity.CacheEntry)) entity.CacheEntry
	Patch(subjectID string, metrics entity.MetricsPatch, state entity.InteractionPatch) entity.CacheEntry
	CreateDefault(subjectID string) entity.CacheEntry

	// List pages
	RegisterListPage(key string, entries []entity.CacheEntry) entity.ListPage
	ListPage(key string) (entity.ListPage, bool)
	RemoveListPage(key string)

	// ResetViewerState clears every viewer flag while keeping public counters, for a
	// change of signed-in viewer. It returns the new version of each cached subject.
	ResetViewerState() map[string]int64

	// Change notifications
	Subscribe(subjectID string, fn func(entity.CacheEntry)) (unsubscribe func())
	OnInvalidate(fn func(subjectID string)) (unsubscribe func())
}

// ICacheMirror persists cache slots outside the process.
type ICacheMirror interface {
	GetEntry(ctx context.Context, subjectID string) (*entity.CacheEntry, bool, error)
	SetEntry(ctx context.Context, entry entity.CacheEntry) error
	GetListPage(ctx context.Context, key string) (*entity.ListPage, bool, error)
	SetListPage(ctx context.Context, page entity.ListPage) error
	DeleteListPage(ctx context.Context, key string) error
	InvalidateListPages(ctx context.Context) error
}
