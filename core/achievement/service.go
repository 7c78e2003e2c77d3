package achievement

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/mzalendo/maendeleo/core"
)

var (
	// errors
	ErrNotFound           = errors.New("achievement not found")
	ErrCodeExists         = errors.New("an achievement with this code already exists")
	ErrUnknownRequirement = errors.New("unknown achievement requirement kind")
)

type (
	Repository interface {
		CheckCodeUniqueness(ctx context.Context, code string) error
		CreateDefinition(ctx context.Context, def Definition) (Definition, error)
		QueryAllDefinitions(ctx context.Context) ([]Definition, error)
		GetDefinitionByCode(ctx context.Context, code string) (Definition, error)
		UpdateDefinition(ctx context.Context, def Definition) (Definition, error)
		DeleteDefinitionByCode(ctx context.Context, code string) error
		// IncrementUnlockCount bumps the definition's lifetime unlock counter.
		IncrementUnlockCount(ctx context.Context, code string) error
	}

	Service interface {
		CheckCodeUniqueness(code string) error
		Create(ctx context.Context, nd NewDefinition) (Definition, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Definition, error)
		GetByCode(ctx context.Context, code string) (Definition, error)
		Update(ctx context.Context, code string, ud UpdateDefinition) (Definition, error)
		Delete(ctx context.Context, code string) error
		// Active returns the active definitions in evaluation order.
		// Reads are served from an in-memory catalog refreshed on writes.
		Active(ctx context.Context) ([]Definition, error)
		RecordUnlock(ctx context.Context, code string)
	}

	service struct {
		repo Repository

		// read-mostly catalog cache; replaced wholesale on writes
		mutex  sync.RWMutex
		dirty  bool
		cached []Definition
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo, dirty: true}
}

func (svc *service) CheckCodeUniqueness(code string) error {
	if err := svc.repo.CheckCodeUniqueness(context.Background(), code); err != nil {
		if err == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nd NewDefinition) (Definition, error) {
	now := time.Now().UTC()
	def := Definition{
		Code:        nd.Code,
		Name:        nd.Name,
		Description: nd.Description,
		Type:        nd.Type,
		Category:    nd.Category,
		Rarity:      nd.Rarity,
		Icon:        nd.Icon,
		XPReward:    nd.XPReward,
		CupsReward:  nd.CupsReward,
		Requirement: nd.Requirement,
		IsActive:    true,
		IsSecret:    nd.IsSecret,
		Order:       nd.Order,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	def, err := svc.repo.CreateDefinition(ctx, def)
	if err != nil {
		return Definition{}, err
	}
	svc.invalidate()
	return def, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Definition, error) {
	defs, err := svc.catalog(ctx)
	if err != nil {
		return nil, err
	}
	if filter == nil || filter.IsEmpty() {
		return defs, nil
	}

	filtered := make([]Definition, 0, len(defs))
	for _, def := range defs {
		if filter.Match(def) {
			filtered = append(filtered, def)
		}
	}
	return filtered, nil
}

func (svc *service) GetByCode(ctx context.Context, code string) (Definition, error) {
	return svc.repo.GetDefinitionByCode(ctx, code)
}

func (svc *service) Update(ctx context.Context, code string, ud UpdateDefinition) (Definition, error) {
	def, err := svc.repo.GetDefinitionByCode(ctx, code)
	if err != nil {
		return Definition{}, err
	}

	if ud.Name != "" {
		def.Name = ud.Name
	}
	if ud.Description != "" {
		def.Description = ud.Description
	}
	if ud.Type != "" {
		def.Type = ud.Type
	}
	if ud.Category != "" {
		def.Category = ud.Category
	}
	if ud.Rarity != "" {
		def.Rarity = ud.Rarity
	}
	if ud.Icon != "" {
		def.Icon = ud.Icon
	}
	if ud.XPReward != nil {
		def.XPReward = *ud.XPReward
	}
	if ud.CupsReward != nil {
		def.CupsReward = *ud.CupsReward
	}
	if ud.Requirement != nil {
		def.Requirement = *ud.Requirement
	}
	if ud.IsActive != nil {
		def.IsActive = *ud.IsActive
	}
	if ud.IsSecret != nil {
		def.IsSecret = *ud.IsSecret
	}
	if ud.Order != nil {
		def.Order = *ud.Order
	}
	def.UpdatedAt = time.Now().UTC()

	def, err = svc.repo.UpdateDefinition(ctx, def)
	if err != nil {
		return Definition{}, err
	}
	svc.invalidate()
	return def, nil
}

func (svc *service) Delete(ctx context.Context, code string) error {
	if err := svc.repo.DeleteDefinitionByCode(ctx, code); err != nil {
		return err
	}
	svc.invalidate()
	return nil
}

func (svc *service) Active(ctx context.Context) ([]Definition, error) {
	defs, err := svc.catalog(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]Definition, 0, len(defs))
	for _, def := range defs {
		if def.IsActive {
			active = append(active, def)
		}
	}
	return active, nil
}

// RecordUnlock is best effort; a lost counter increment never fails the unlock.
func (svc *service) RecordUnlock(ctx context.Context, code string) {
	_ = svc.repo.IncrementUnlockCount(ctx, code)
	svc.invalidate()
}

func (svc *service) invalidate() {
	svc.mutex.Lock()
	svc.dirty = true
	svc.mutex.Unlock()
}

// catalog returns the cached definitions, reloading them from the repository
// when a write invalidated the cache.
func (svc *service) catalog(ctx context.Context) ([]Definition, error) {
	svc.mutex.RLock()
	if !svc.dirty {
		defs := svc.cached
		svc.mutex.RUnlock()
		return defs, nil
	}
	svc.mutex.RUnlock()

	defs, err := svc.repo.QueryAllDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].Order != defs[j].Order {
			return defs[i].Order < defs[j].Order
		}
		return defs[i].Code < defs[j].Code
	})

	svc.mutex.Lock()
	svc.cached = defs
	svc.dirty = false
	svc.mutex.Unlock()
	return defs, nil
}
