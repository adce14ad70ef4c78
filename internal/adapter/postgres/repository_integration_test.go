package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wozamali/admin-console/internal/domain"
)

func insertEarning(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, amount float64) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	require.NoError(t, pool.QueryRow(context.Background(),
		`INSERT INTO watch_ad_earnings (user_id, ad_id, amount) VALUES ($1, 'ad-42', $2) RETURNING id`,
		userID, amount).Scan(&id))
	return id
}

func insertCollection(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, material, status string, createdAt time.Time) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	require.NoError(t, pool.QueryRow(context.Background(),
		`INSERT INTO collections (user_id, material_type, weight_kg, amount, status, created_at)
		 VALUES ($1, $2, 2.5, 7.5, $3, $4) RETURNING id`,
		userID, material, status, createdAt).Scan(&id))
	return id
}

func TestAdminRepo_GetByID(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewAdminRepo(pool)
	id := insertAdmin(t, pool, "super_admin", true)

	admin, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSuperAdmin, admin.Role)
	assert.True(t, admin.IsActive)

	_, err = repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrAdminNotFound)
}

func TestEarningRepo_ApproveCreditsWallet(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewEarningRepo(pool)
	ctx := context.Background()
	member := insertProfile(t, pool, "Thandi Mokoena")
	adminID := insertAdmin(t, pool, "admin", true)
	earningID := insertEarning(t, pool, member, 2.50)

	earning, err := repo.Approve(ctx, earningID, adminID)
	require.NoError(t, err)

	assert.Equal(t, domain.EarningApproved, earning.Status)
	assert.Equal(t, "Thandi Mokoena", earning.MemberName)
	require.NotNil(t, earning.ReviewedBy)
	assert.Equal(t, adminID, *earning.ReviewedBy)
	assert.NotNil(t, earning.ReviewedAt)
	assert.InDelta(t, 2.50, walletBalance(t, pool, member), 0.001)

	_, err = repo.Approve(ctx, earningID, adminID)
	assert.ErrorIs(t, err, domain.ErrNotPending)
	assert.InDelta(t, 2.50, walletBalance(t, pool, member), 0.001, "wallet is credited once")
}

func TestEarningRepo_Reject(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewEarningRepo(pool)
	ctx := context.Background()
	member := insertProfile(t, pool, "Sipho Dlamini")
	adminID := insertAdmin(t, pool, "admin", true)
	earningID := insertEarning(t, pool, member, 1.00)

	earning, err := repo.Reject(ctx, earningID, adminID, "duplicate claim")
	require.NoError(t, err)
	assert.Equal(t, domain.EarningRejected, earning.Status)
	assert.Equal(t, "duplicate claim", earning.RejectionReason)
	assert.Zero(t, walletBalance(t, pool, member))

	_, err = repo.Reject(ctx, uuid.New(), adminID, "nope")
	assert.ErrorIs(t, err, domain.ErrEarningNotFound)
}

func TestEarningRepo_ListFiltersByStatus(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewEarningRepo(pool)
	ctx := context.Background()
	member := insertProfile(t, pool, "Lerato")
	adminID := insertAdmin(t, pool, "admin", true)
	insertEarning(t, pool, member, 1)
	approved := insertEarning(t, pool, member, 2)
	_, err := repo.Approve(ctx, approved, adminID)
	require.NoError(t, err)

	pending, err := repo.List(ctx, domain.EarningFilter{Status: domain.EarningPending, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all, err := repo.List(ctx, domain.EarningFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCollectionRepo_UpdateStatus(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewCollectionRepo(pool)
	ctx := context.Background()
	member := insertProfile(t, pool, "Ayanda")
	id := insertCollection(t, pool, member, "plastic", "pending", time.Now())

	c, err := repo.UpdateStatus(ctx, id, domain.CollectionApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.CollectionApproved, c.Status)
	assert.Equal(t, "Ayanda", c.MemberName)
	assert.InDelta(t, 2.5, c.WeightKg, 0.001)

	_, err = repo.UpdateStatus(ctx, id, domain.CollectionRejected)
	assert.ErrorIs(t, err, domain.ErrNotPending)

	_, err = repo.UpdateStatus(ctx, uuid.New(), domain.CollectionRejected)
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestCollectionRepo_ExportFlow(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewCollectionRepo(pool)
	ctx := context.Background()
	member := insertProfile(t, pool, "Naledi")
	adminID := insertAdmin(t, pool, "admin", true)

	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	inRange := insertCollection(t, pool, member, "glass", "approved", base)
	insertCollection(t, pool, member, "glass", "approved", base.AddDate(0, 1, 0))
	insertCollection(t, pool, member, "paper", "pending", base)

	from, to := base.AddDate(0, 0, -1), base.AddDate(0, 0, 1)
	rows, err := repo.ListExportable(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, inRange, rows[0].ID)

	export, err := repo.MarkExported(ctx, domain.ExportRequest{
		AdminID: adminID, Format: domain.FormatExcel, Filename: "export.xlsx", From: from, To: to,
	}, []uuid.UUID{inRange})
	require.NoError(t, err)
	assert.Equal(t, 1, export.CollectionCount)
	require.NotNil(t, export.From)
	assert.True(t, export.From.Equal(from))

	rows, err = repo.ListExportable(ctx, from, to)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = repo.MarkExported(ctx, domain.ExportRequest{AdminID: adminID, Format: domain.FormatPDF, Filename: "again.pdf"}, []uuid.UUID{inRange})
	assert.ErrorIs(t, err, domain.ErrAlreadyExported)

	exports, err := repo.ListExports(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, exports, 1)
}

func TestCollectionRepo_ListUnboundedRange(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewCollectionRepo(pool)
	member := insertProfile(t, pool, "Bongani")
	for i := 0; i < 3; i++ {
		insertCollection(t, pool, member, "metal", "approved", time.Now().Add(-time.Duration(i)*time.Hour))
	}

	rows, err := repo.List(context.Background(), domain.CollectionFilter{Status: domain.CollectionApproved})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	page, err := repo.List(context.Background(), domain.CollectionFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestProber(t *testing.T) {
	pool := setupTestDB(t)
	prober := NewProber(pool)

	found, err := prober.Probe(context.Background(), "admin_users", 1)
	require.NoError(t, err)
	assert.False(t, found, "empty table is still a successful probe")

	insertAdmin(t, pool, "admin", true)
	found, err = prober.Probe(context.Background(), "admin_users", 1)
	require.NoError(t, err)
	assert.True(t, found)

	_, err = prober.Probe(context.Background(), "no_such_table", 1)
	assert.Error(t, err)
}
