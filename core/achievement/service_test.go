package achievement

import (
	"context"
	"testing"

	"github.com/mzalendo/maendeleo/core"
)

type fakeRepo struct {
	defs    map[string]Definition
	queries int
}

func newFakeRepo(defs ...Definition) *fakeRepo {
	r := &fakeRepo{defs: make(map[string]Definition)}
	for _, def := range defs {
		r.defs[def.Code] = def
	}
	return r
}

func (r *fakeRepo) CheckCodeUniqueness(ctx context.Context, code string) error {
	if _, ok := r.defs[code]; ok {
		return ErrCodeExists
	}
	return nil
}

func (r *fakeRepo) CreateDefinition(ctx context.Context, def Definition) (Definition, error) {
	r.defs[def.Code] = def
	return def, nil
}

func (r *fakeRepo) QueryAllDefinitions(ctx context.Context) ([]Definition, error) {
	r.queries++
	defs := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	return defs, nil
}

func (r *fakeRepo) GetDefinitionByCode(ctx context.Context, code string) (Definition, error) {
	def, ok := r.defs[code]
	if !ok {
		return Definition{}, ErrNotFound
	}
	return def, nil
}

func (r *fakeRepo) UpdateDefinition(ctx context.Context, def Definition) (Definition, error) {
	r.defs[def.Code] = def
	return def, nil
}

func (r *fakeRepo) DeleteDefinitionByCode(ctx context.Context, code string) error {
	delete(r.defs, code)
	return nil
}

func (r *fakeRepo) IncrementUnlockCount(ctx context.Context, code string) error {
	def := r.defs[code]
	def.TotalUnlocked++
	r.defs[code] = def
	return nil
}

func TestServiceActiveOrdering(t *testing.T) {
	repo := newFakeRepo(
		Definition{Code: "B_SECOND", Order: 2, IsActive: true},
		Definition{Code: "A_SECOND", Order: 2, IsActive: true},
		Definition{Code: "FIRST", Order: 1, IsActive: true},
		Definition{Code: "DISABLED", Order: 0, IsActive: false},
	)
	svc := NewService(repo)
	ctx := context.Background()

	defs, err := svc.Active(ctx)
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	var codes []string
	for _, def := range defs {
		codes = append(codes, def.Code)
	}
	want := []string{"FIRST", "A_SECOND", "B_SECOND"}
	if len(codes) != len(want) {
		t.Fatalf("Active() = %v, want %v", codes, want)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("Active() = %v, want %v", codes, want)
		}
	}
}

func TestServiceCatalogCache(t *testing.T) {
	repo := newFakeRepo(Definition{Code: "STREAK_7", Order: 1, IsActive: true})
	svc := NewService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Query(ctx, nil); err != nil {
			t.Fatal(err)
		}
	}
	if repo.queries != 1 {
		t.Fatalf("repository queried %d times, want 1 (cached)", repo.queries)
	}

	// a write invalidates the cache
	if _, err := svc.Create(ctx, NewDefinition{
		Code: "STREAK_30", Name: "Monthly", Category: CategoryStreak,
		Requirement: Requirement{Kind: ReqStreakDays, Threshold: 30},
	}); err != nil {
		t.Fatal(err)
	}
	defs, err := svc.Query(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if repo.queries != 2 {
		t.Errorf("repository queried %d times after write, want 2", repo.queries)
	}
	if len(defs) != 2 {
		t.Errorf("catalog size = %d, want 2", len(defs))
	}
}

func TestServiceQueryFilter(t *testing.T) {
	repo := newFakeRepo(
		Definition{Code: "STREAK_7", Category: CategoryStreak, Rarity: RarityCommon, IsActive: true},
		Definition{Code: "PERFECT_10", Category: CategoryPerfection, Rarity: RarityEpic, IsActive: true},
	)
	svc := NewService(repo)

	defs, err := svc.Query(context.Background(), &QueryFilter{Category: CategoryPerfection})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(defs) != 1 || defs[0].Code != "PERFECT_10" {
		t.Errorf("Query() = %+v, want only PERFECT_10", defs)
	}
}

func TestServiceCheckCodeUniqueness(t *testing.T) {
	repo := newFakeRepo(Definition{Code: "STREAK_7"})
	svc := NewService(repo)

	if err := svc.CheckCodeUniqueness("FRESH"); err != nil {
		t.Errorf("CheckCodeUniqueness(FRESH) = %v", err)
	}

	err := svc.CheckCodeUniqueness("STREAK_7")
	if err == nil {
		t.Fatal("duplicate code accepted")
	}
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("error type = %T, want *core.ValidationError", err)
	}
}

func TestServiceUpdatePartial(t *testing.T) {
	repo := newFakeRepo(Definition{
		Code: "STREAK_7", Name: "Week Warrior", Rarity: RarityCommon, XPReward: 25, IsActive: true,
	})
	svc := NewService(repo)
	ctx := context.Background()

	inactive := false
	xp := 50
	def, err := svc.Update(ctx, "STREAK_7", UpdateDefinition{
		Rarity:   RarityRare,
		XPReward: &xp,
		IsActive: &inactive,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if def.Name != "Week Warrior" {
		t.Errorf("Name overwritten: %q", def.Name)
	}
	if def.Rarity != RarityRare || def.XPReward != 50 || def.IsActive {
		t.Errorf("updated def = %+v", def)
	}

	if _, err = svc.Update(ctx, "NOPE", UpdateDefinition{}); err != ErrNotFound {
		t.Errorf("Update(NOPE) error = %v, want ErrNotFound", err)
	}
}

func TestServiceRecordUnlock(t *testing.T) {
	repo := newFakeRepo(Definition{Code: "STREAK_7", IsActive: true})
	svc := NewService(repo)
	ctx := context.Background()

	svc.RecordUnlock(ctx, "STREAK_7")
	svc.RecordUnlock(ctx, "STREAK_7")
	if got := repo.defs["STREAK_7"].TotalUnlocked; got != 2 {
		t.Errorf("TotalUnlocked = %d, want 2", got)
	}
}
