package gatewaysettings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CourseFox/app/models"
	"github.com/ManuelReschke/CourseFox/internal/pkg/database/testdb"
	"github.com/ManuelReschke/CourseFox/internal/pkg/security"
)

func TestGormRepositoryUpsertKeepsSecretColumn(t *testing.T) {
	repo := NewRepository(testdb.Open(t))
	ctx := context.Background()

	_, err := repo.FindByName(ctx, "paystack")
	assert.ErrorIs(t, err, ErrNotFound)

	row := &models.PaymentGatewaySetting{Name: "paystack", PublicKey: "pk_1", SecretKeyEnc: "v1:first", IsActive: true}
	require.NoError(t, repo.Upsert(ctx, row, true))
	assert.NotZero(t, row.ID)

	update := &models.PaymentGatewaySetting{Name: "paystack", PublicKey: "pk_2", SecretKeyEnc: "v1:ignored", IsActive: true}
	require.NoError(t, repo.Upsert(ctx, update, false))
	assert.Equal(t, row.ID, update.ID)

	got, err := repo.FindByName(ctx, "paystack")
	require.NoError(t, err)
	assert.Equal(t, "pk_2", got.PublicKey)
	assert.Equal(t, "v1:first", got.SecretKeyEnc)

	require.NoError(t, repo.Upsert(ctx, &models.PaymentGatewaySetting{Name: "paystack", PublicKey: "pk_3", SecretKeyEnc: "v1:second", IsActive: true}, true))
	got, err = repo.FindByName(ctx, "paystack")
	require.NoError(t, err)
	assert.Equal(t, "v1:second", got.SecretKeyEnc)

	var count int64
	require.NoError(t, testdbCount(repo, &count))
	assert.Equal(t, int64(1), count)
}

func TestStoreWithGormRepository(t *testing.T) {
	c, err := security.NewSecretCipher("test-master-key")
	require.NoError(t, err)
	store := NewStoreFromDB(testdb.Open(t), c)
	ctx := context.Background()

	view, err := store.Upsert(ctx, admin, "paystack", UpsertInput{PublicKey: "pk_live", SecretKey: strPtr("sk_live_0000abcd"), IsActive: true})
	require.NoError(t, err)

	_, err = store.Upsert(ctx, admin, "paystack", UpsertInput{PublicKey: "pk_live", SecretKey: &view.SecretKeyMasked, IsActive: true})
	require.NoError(t, err)

	secret, err := store.SecretForServerUse(ctx, "paystack")
	require.NoError(t, err)
	assert.Equal(t, "sk_live_0000abcd", secret)
}

func testdbCount(repo Repository, count *int64) error {
	return repo.(*gormRepository).db.Model(&models.PaymentGatewaySetting{}).Count(count).Error
}
