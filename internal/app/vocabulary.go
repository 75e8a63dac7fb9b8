package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"gymdir/internal/domain"
)

const vocabularyKey = "equipment:types"

// EquipmentVocabulary is a read-through cache in front of the equipment
// master table. A failing cache degrades to the underlying catalog.
type EquipmentVocabulary struct {
	inner domain.EquipmentCatalog
	cache domain.Cache
	ttl   time.Duration
}

var _ domain.EquipmentCatalog = (*EquipmentVocabulary)(nil)

func NewEquipmentVocabulary(inner domain.EquipmentCatalog, cache domain.Cache, ttl time.Duration) *EquipmentVocabulary {
	return &EquipmentVocabulary{inner: inner, cache: cache, ttl: ttl}
}

func (v *EquipmentVocabulary) EquipmentTypes(ctx context.Context) ([]domain.EquipmentType, error) {
	var types []domain.EquipmentType
	if v.cache != nil {
		ok, err := v.cache.Get(ctx, vocabularyKey, &types)
		if err != nil {
			log.Warn().Err(err).Msg("equipment vocabulary cache read failed")
		}
		if ok && len(types) > 0 {
			return types, nil
		}
	}

	types, err := v.inner.EquipmentTypes(ctx)
	if err != nil {
		return nil, err
	}
	if v.cache != nil && len(types) > 0 {
		if err := v.cache.Set(ctx, vocabularyKey, types, int(v.ttl.Seconds())); err != nil {
			log.Warn().Err(err).Msg("equipment vocabulary cache write failed")
		}
	}
	return types, nil
}

// Invalidate drops the cached vocabulary, e.g. after the master table changed.
func (v *EquipmentVocabulary) Invalidate(ctx context.Context) error {
	if v.cache == nil {
		return nil
	}
	return v.cache.Del(ctx, vocabularyKey)
}
