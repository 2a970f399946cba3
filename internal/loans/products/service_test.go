package products

import (
	"context"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/solara-mfi/solara/internal/fault"
	"github.com/solara-mfi/solara/internal/loans/emi"
)

type memoryRepo struct {
	products map[string]Product
	nextID   int64
	gets     int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[string]Product)}
}

func (r *memoryRepo) Create(ctx context.Context, p Product) (Product, error) {
	r.nextID++
	p.ID = r.nextID
	r.products[p.Code] = p
	return p, nil
}

func (r *memoryRepo) Update(ctx context.Context, p Product) (Product, error) {
	existing, ok := r.products[p.Code]
	if !ok {
		return Product{}, fault.NotFound("products: no product with code %s", p.Code)
	}
	p.ID = existing.ID
	r.products[p.Code] = p
	return p, nil
}

func (r *memoryRepo) GetByCode(ctx context.Context, code string) (Product, error) {
	r.gets++
	p, ok := r.products[code]
	if !ok {
		return Product{}, fault.NotFound("products: no product with code %s", code)
	}
	return p, nil
}

func (r *memoryRepo) List(ctx context.Context) ([]Product, error) {
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, nil
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testProduct() Product {
	return Product{
		Code:          "SME-RB",
		Name:          "SME Reducing Balance",
		Interest:      emi.InterestDiminishing,
		AnnualRatePct: amount("12"),
		MinAmount:     amount("1000"),
		MaxAmount:     amount("500000"),
		MinTenure:     3,
		MaxTenure:     60,
		ProcessingFee: amount("150"),
		Active:        true,
	}
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := newMemoryRepo()
	return NewService(repo, NewCache(client, slog.Default())), repo, mr
}

func TestGetByCodeReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	service, repo, _ := newTestService(t)

	_, err := service.Create(ctx, testProduct())
	require.NoError(t, err)

	// Create primed the cache, so reads never hit the repository.
	for i := 0; i < 3; i++ {
		p, err := service.GetByCode(ctx, "SME-RB")
		require.NoError(t, err)
		require.Equal(t, "SME-RB", p.Code)
	}
	require.Zero(t, repo.gets)
}

func TestGetByCodeFallsBackToRepoOnMiss(t *testing.T) {
	ctx := context.Background()
	service, repo, mr := newTestService(t)

	_, err := service.Create(ctx, testProduct())
	require.NoError(t, err)
	mr.FlushAll()

	p, err := service.GetByCode(ctx, "SME-RB")
	require.NoError(t, err)
	require.Equal(t, "SME-RB", p.Code)
	require.Equal(t, 1, repo.gets)

	// The miss repopulated the cache.
	_, err = service.GetByCode(ctx, "SME-RB")
	require.NoError(t, err)
	require.Equal(t, 1, repo.gets)
}

func TestUpdateInvalidatesStaleCacheEntry(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t)

	_, err := service.Create(ctx, testProduct())
	require.NoError(t, err)

	changed := testProduct()
	changed.AnnualRatePct = amount("15")
	_, err = service.Update(ctx, changed)
	require.NoError(t, err)

	p, err := service.GetByCode(ctx, "SME-RB")
	require.NoError(t, err)
	require.True(t, p.AnnualRatePct.Equal(amount("15")), "reads must see the new rate immediately")
}

func TestGetByCodeSurvivesRedisOutage(t *testing.T) {
	ctx := context.Background()
	service, repo, mr := newTestService(t)

	_, err := service.Create(ctx, testProduct())
	require.NoError(t, err)

	mr.Close()
	p, err := service.GetByCode(ctx, "SME-RB")
	require.NoError(t, err, "cache failure must degrade to the database")
	require.Equal(t, "SME-RB", p.Code)
	require.Equal(t, 1, repo.gets)
}

func TestNilCacheDisablesCaching(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	service := NewService(repo, nil)

	_, err := service.Create(ctx, testProduct())
	require.NoError(t, err)

	_, err = service.GetByCode(ctx, "SME-RB")
	require.NoError(t, err)
	require.Equal(t, 1, repo.gets)
}

func TestCreateRejectsInvalidDefinition(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(t)

	broken := testProduct()
	broken.MaxAmount = amount("10")
	_, err := service.Create(ctx, broken)
	require.Equal(t, fault.KindValidation, fault.KindOf(err))

	broken = testProduct()
	broken.Interest = "COMPOUND"
	_, err = service.Create(ctx, broken)
	require.Equal(t, fault.KindValidation, fault.KindOf(err))
}

func TestCheckRequestBounds(t *testing.T) {
	p := testProduct()

	require.NoError(t, p.CheckRequest(amount("5000"), 12))
	require.Equal(t, fault.KindValidation, fault.KindOf(p.CheckRequest(amount("999.99"), 12)))
	require.Equal(t, fault.KindValidation, fault.KindOf(p.CheckRequest(amount("5000"), 61)))

	p.Active = false
	require.Equal(t, fault.KindStateConflict, fault.KindOf(p.CheckRequest(amount("5000"), 12)))
}
